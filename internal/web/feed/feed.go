// Package feed publishes the rows of a model.List, optionally through a
// sorting and filtering proxy, over HTTP and a websocket.
//
// Routes:
//
//	GET /roles       role catalog of the item type
//	GET /rows        snapshot of every row
//	GET /rows/{row}  one row
//	GET /ws          websocket: a snapshot on connect, then one message per
//	                 model change; clients may send set, sort, filter and
//	                 snapshot requests
//
// The model is single threaded, so every read and write is funnelled
// through the list's loop with Invoke. The loop must be running.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/filter"
	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/model"
	"github.com/conduit-lang/objectmodel/runtime/object"
	"github.com/conduit-lang/objectmodel/runtime/proxy"
)

// Server serves one list.
type Server struct {
	list   *model.List
	proxy  *proxy.SortFilter
	loop   *loop.Loop
	logger *zap.Logger
	roles  any
	auth   *Authenticator

	hub      *Hub
	upgrader websocket.Upgrader
	router   chi.Router
	unsubs   []func()
}

var _ model.RolesProvider = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProxy publishes rows in the order and selection of p. p must use the
// served list as its source.
func WithProxy(p *proxy.SortFilter) Option {
	return func(s *Server) {
		s.proxy = p
	}
}

// WithRoles sets the role spec of the published values. It defaults to
// every own and inherited property.
func WithRoles(spec any) Option {
	return func(s *Server) {
		s.roles = spec
	}
}

// WithAuth requires a bearer token on every route.
func WithAuth(a *Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithCheckOrigin sets the websocket origin check. All origins are
// accepted by default.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// New creates a server for list. Call it on the list's loop goroutine, or
// before the loop runs.
func New(list *model.List, opts ...Option) *Server {
	s := &Server{
		list:   list,
		loop:   list.Loop(),
		logger: zap.NewNop(),
		roles:  metadata.AllRoles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger, s.handleMessage)
	s.subscribe()
	list.AddRolesProvider(s)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger), requestID, requestLogger(s.logger))
	if s.auth != nil {
		r.Use(s.auth.Middleware)
	}
	r.Get("/roles", s.handleRoles)
	r.Get("/rows", s.handleRows)
	r.Get("/rows/{row}", s.handleRow)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves websocket clients until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// ListenAndServe serves addr, running the hub alongside, and shuts down
// gracefully when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Feed listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close detaches the server from the model. Call it on the loop goroutine.
func (s *Server) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.list.RemoveRolesProvider(s)
}

// DynamicRoles keeps the published roles watched on the list.
func (s *Server) DynamicRoles() []string {
	roles := s.valueRoles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	return names
}

func (s *Server) subscribe() {
	if s.proxy != nil {
		s.unsubs = append(s.unsubs,
			s.proxy.LayoutChanged.Subscribe(func(struct{}) { s.publish("layoutChanged", nil) }),
			s.proxy.ModelReset.Subscribe(func(struct{}) { s.publish("modelReset", nil) }),
		)
	} else {
		s.unsubs = append(s.unsubs,
			s.list.RowsInserted.Subscribe(func(r model.RowRange) {
				s.publish("rowsInserted", &span{First: r.First, Last: r.Last})
			}),
			s.list.RowsRemoved.Subscribe(func(r model.RowRange) {
				s.publish("rowsRemoved", &span{First: r.First, Last: r.Last})
			}),
			s.list.RowsMoved.Subscribe(func(r model.MoveRange) {
				s.publish("rowsMoved", &span{First: r.First, Last: r.Last, To: r.To})
			}),
			s.list.ModelReset.Subscribe(func(struct{}) { s.publish("modelReset", nil) }),
		)
	}
	s.unsubs = append(s.unsubs,
		s.list.DataChanged.Subscribe(func(model.DataChange) { s.publish("dataChanged", nil) }),
		s.list.ItemDataChanged.Subscribe(func(ids metadata.RoleSet) {
			s.publishRoles("itemDataChanged", ids)
		}),
	)
}

// span is a row range in the coordinates of the published rows.
type span struct {
	First int `json:"first"`
	Last  int `json:"last"`
	To    int `json:"to,omitempty"`
}

// Change is the payload of every change message.
type Change struct {
	Range    *span    `json:"range,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Snapshot Snapshot `json:"snapshot"`
}

func (s *Server) publish(messageType string, r *span) {
	s.broadcast(messageType, Change{Range: r, Snapshot: s.snapshot()})
}

func (s *Server) publishRoles(messageType string, ids metadata.RoleSet) {
	catalog := s.list.Catalog()
	if catalog == nil {
		return
	}
	var names []string
	for _, id := range ids {
		if role, err := catalog.Role(id); err == nil {
			names = append(names, role.Name)
		}
	}
	s.broadcast(messageType, Change{Roles: names, Snapshot: s.snapshot()})
}

func (s *Server) broadcast(messageType string, change Change) {
	if err := s.hub.Broadcast(messageType, change); err != nil {
		s.logger.Error("Failed to broadcast change", zap.String("type", messageType), zap.Error(err))
	}
}

// Row is one published row.
type Row struct {
	Row        int            `json:"row"`
	ID         string         `json:"id,omitempty"`
	ObjectName string         `json:"objectName,omitempty"`
	Values     map[string]any `json:"values"`
}

// Snapshot holds the published roles and every row.
type Snapshot struct {
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles"`
	Rows  []Row    `json:"rows"`
}

// RoleEntry describes one catalog role.
type RoleEntry struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Inherited bool   `json:"inherited"`
}

type rowView interface {
	Len() int
	At(row int) object.Object
	Data(row int, role any) (any, bool)
	SetData(row int, role any, value any) error
}

func (s *Server) view() rowView {
	if s.proxy != nil {
		return s.proxy
	}
	return s.list
}

// valueRoles returns the published roles that hold plain values.
func (s *Server) valueRoles() []*metadata.RoleInfo {
	catalog := s.list.Catalog()
	if catalog == nil {
		return nil
	}
	ids, err := catalog.ParseRoleSpec(s.roles)
	if err != nil {
		s.logger.Warn("Invalid feed roles", zap.Any("roles", s.roles), zap.Error(err))
		return nil
	}
	var out []*metadata.RoleInfo
	for _, id := range ids {
		role, err := catalog.Role(id)
		if err != nil || id == metadata.ItemRole || role.IsObject() || role.IsSignal() {
			continue
		}
		out = append(out, role)
	}
	return out
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{Roles: []string{}, Rows: []Row{}}
	if catalog := s.list.Catalog(); catalog != nil {
		snap.Type = catalog.TypeName()
	}
	roles := s.valueRoles()
	for _, role := range roles {
		snap.Roles = append(snap.Roles, role.Name)
	}
	v := s.view()
	for i := 0; i < v.Len(); i++ {
		snap.Rows = append(snap.Rows, s.row(v, roles, i))
	}
	return snap
}

func (s *Server) row(v rowView, roles []*metadata.RoleInfo, i int) Row {
	row := Row{Row: i, Values: make(map[string]any, len(roles))}
	item := v.At(i)
	if object.IsNil(item) {
		return row
	}
	row.ID = item.ObjectBase().ID().String()
	row.ObjectName = item.ObjectBase().GetObjectName()
	for _, role := range roles {
		if value, ok := v.Data(i, role.ID); ok {
			row.Values[role.Name] = value
		}
	}
	return row
}

// invoke runs fn on the model's loop.
func (s *Server) invoke(ctx context.Context, name string, fn func() error) error {
	return s.loop.Invoke(ctx, name, fn)
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	var entries []RoleEntry
	err := s.invoke(r.Context(), "feed.roles", func() error {
		catalog := s.list.Catalog()
		if catalog == nil {
			return model.ErrNotInitialized
		}
		for _, role := range catalog.Roles() {
			entries = append(entries, RoleEntry{
				ID:        int(role.ID),
				Name:      role.Name,
				Kind:      role.Kind.String(),
				Inherited: role.Inherited,
			})
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	var snap Snapshot
	err := s.invoke(r.Context(), "feed.rows", func() error {
		snap = s.snapshot()
		return nil
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "row must be an integer")
		return
	}
	var row Row
	found := false
	err = s.invoke(r.Context(), "feed.row", func() error {
		v := s.view()
		if n < 0 || n >= v.Len() {
			return nil
		}
		row = s.row(v, s.valueRoles(), n)
		found = true
		return nil
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("row %d not found", n))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), Subject(r.Context()), conn, s.hub)
	s.hub.add(client)
	go client.writePump()
	go client.readPump(context.WithoutCancel(r.Context()))

	s.logger.Info("WebSocket connection established",
		zap.String("client", client.ID),
		zap.String("subject", client.Subject))
	if err := s.sendSnapshot(r.Context(), client); err != nil {
		s.logger.Warn("Failed to send snapshot", zap.String("client", client.ID), zap.Error(err))
	}
}

func (s *Server) sendSnapshot(ctx context.Context, client *Client) error {
	var snap Snapshot
	if err := s.invoke(ctx, "feed.snapshot", func() error {
		snap = s.snapshot()
		return nil
	}); err != nil {
		return err
	}
	return client.Send("snapshot", snap)
}

// SetRequest writes one role of a published row.
type SetRequest struct {
	Row   int    `json:"row"`
	Role  string `json:"role"`
	Value any    `json:"value"`
}

// SortRequest sets the proxy sort roles and order.
type SortRequest struct {
	Roles []string `json:"roles"`
	Order string   `json:"order"`
}

// FilterRequest replaces the proxy filter; an empty role clears it.
type FilterRequest struct {
	Role  string `json:"role"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

func (s *Server) handleMessage(ctx context.Context, client *Client, message *Message) error {
	switch message.Type {
	case "snapshot":
		return s.sendSnapshot(ctx, client)

	case "set":
		var req SetRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return fmt.Errorf("set: %w", err)
		}
		return s.invoke(ctx, "feed.set", func() error {
			return s.view().SetData(req.Row, req.Role, req.Value)
		})

	case "sort":
		if s.proxy == nil {
			return fmt.Errorf("sort: the feed has no proxy")
		}
		var req SortRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return fmt.Errorf("sort: %w", err)
		}
		order, err := proxy.ParseOrder(req.Order)
		if err != nil {
			return err
		}
		return s.invoke(ctx, "feed.sort", func() error {
			s.proxy.SetSortOrder(order)
			s.proxy.SetSortRoles(req.Roles...)
			return nil
		})

	case "filter":
		if s.proxy == nil {
			return fmt.Errorf("filter: the feed has no proxy")
		}
		var req FilterRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		var f *filter.Filter
		if req.Role != "" {
			parsed, err := filter.Parse(req.Role, req.Op, req.Value)
			if err != nil {
				return err
			}
			f = parsed
		}
		return s.invoke(ctx, "feed.filter", func() error {
			s.proxy.SetFilter(f)
			return nil
		})
	}
	return fmt.Errorf("unknown message type %q", message.Type)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
