// Package proxy provides SortFilter, a sorted and filtered view over a
// model.List.
//
// Sorting and filtering are debounced: a request marks the work pending and
// posts one task to the loop, further requests before it runs collapse into
// it. Structural changes of the source are mapped synchronously so proxy
// rows stay valid, then the view is invalidated.
package proxy

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/compare"
	"github.com/conduit-lang/objectmodel/runtime/filter"
	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/model"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Order is the sort direction.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// ParseOrder converts "asc" or "desc".
func ParseOrder(s string) (Order, error) {
	switch s {
	case "asc", "ascending", "":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown sort order %q", s)
}

// SortFilter presents the rows of a source list accepted by a filter, in
// the order given by its sort roles and comparator.
type SortFilter struct {
	loop    *loop.Loop
	logger  *zap.Logger
	enabled bool

	source      *model.List
	sourceUnsub []func()

	filter      *filter.Filter
	filterUnsub []func()
	filterRoles []string

	comparator      *compare.Comparator
	comparatorUnsub func()

	sortRoles []string
	order     Order
	sorted    bool

	sortPending   bool
	filterPending bool
	sortTask      *loop.Handle
	filterTask    *loop.Handle

	rows       []int
	fromSource map[int]int

	LayoutChanged     object.Event[struct{}]
	ModelReset        object.Event[struct{}]
	RowCountChanged   object.Event[int]
	SourceChanged     object.Event[*model.List]
	EnabledChanged    object.Event[bool]
	SortRolesChanged  object.Event[[]string]
	SortOrderChanged  object.Event[Order]
	FilterChanged     object.Event[*filter.Filter]
	ComparatorChanged object.Event[*compare.Comparator]
}

var _ model.RolesProvider = (*SortFilter)(nil)

// Option configures a SortFilter.
type Option func(*SortFilter)

// WithLoop sets the loop sorting and filtering are scheduled on.
func WithLoop(l *loop.Loop) Option {
	return func(s *SortFilter) {
		if l != nil {
			s.loop = l
		}
	}
}

// WithLogger sets the proxy logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SortFilter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an enabled proxy without a source.
func New(opts ...Option) *SortFilter {
	s := &SortFilter{
		logger:  zap.NewNop(),
		enabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loop == nil {
		s.loop = loop.Default()
	}
	return s
}

// Enabled reports whether sorting and filtering run.
func (s *SortFilter) Enabled() bool {
	return s.enabled
}

// SetEnabled turns the proxy on or off. Work requested while disabled runs
// as soon as the proxy is enabled again.
func (s *SortFilter) SetEnabled(enabled bool) {
	if s.enabled == enabled {
		return
	}
	s.enabled = enabled
	s.EnabledChanged.Emit(enabled)
	if s.sortPending {
		s.runSort()
	}
	if s.filterPending {
		if err := s.runFilter(); err != nil {
			s.logger.Error("Failed to filter rows", zap.Error(err))
		}
	}
}

// Source returns the source list.
func (s *SortFilter) Source() *model.List {
	return s.source
}

// SetSource replaces the source list. The proxy registers itself as a
// roles provider of the source so its sort and filter roles are watched.
func (s *SortFilter) SetSource(src *model.List) {
	if src == s.source {
		return
	}
	if s.source != nil {
		for _, unsub := range s.sourceUnsub {
			unsub()
		}
		s.sourceUnsub = nil
		s.source.RemoveRolesProvider(s)
	}
	s.cancelPending()
	s.sorted = false

	s.source = src
	before := len(s.rows)
	s.rows = nil
	if src != nil {
		s.sourceUnsub = []func(){
			src.RowsInserted.Subscribe(s.onRowsInserted),
			src.RowsRemoved.Subscribe(s.onRowsRemoved),
			src.RowsMoved.Subscribe(s.onRowsMoved),
			src.ModelReset.Subscribe(func(struct{}) { s.onSourceReset() }),
			src.DataChanged.Subscribe(s.onDataChanged),
			src.ItemDataChanged.Subscribe(s.OnItemDataChanged),
			src.Initialized.Subscribe(func(*metadata.RoleCatalog) {
				s.checkRoles()
				src.UpdateDynamicRoles()
				s.Invalidate()
			}),
		}
		s.rows = identity(src.Len())
		src.AddRolesProvider(s)
		s.checkRoles()
	}
	s.reindex()

	s.ModelReset.Emit(struct{}{})
	if len(s.rows) != before {
		s.RowCountChanged.Emit(len(s.rows))
	}
	s.SourceChanged.Emit(src)
	if src != nil {
		s.Invalidate()
	}
}

// Close detaches the proxy from its source, filter and comparator.
func (s *SortFilter) Close() {
	s.SetSource(nil)
	s.SetFilter(nil)
	s.SetComparator(nil)
}

// Filter returns the filter.
func (s *SortFilter) Filter() *filter.Filter {
	return s.filter
}

// SetFilter replaces the filter. A nil filter accepts every row.
func (s *SortFilter) SetFilter(f *filter.Filter) {
	if f == s.filter {
		return
	}
	for _, unsub := range s.filterUnsub {
		unsub()
	}
	s.filterUnsub = nil
	s.filter = f
	if f != nil {
		s.filterUnsub = []func(){
			f.FilterChanged.Subscribe(func(struct{}) { s.Invalidate() }),
			f.RolesChanged.Subscribe(func(struct{}) { s.onFilterRolesChanged() }),
		}
	}
	s.onFilterRolesChanged()
	s.FilterChanged.Emit(f)
}

func (s *SortFilter) onFilterRolesChanged() {
	s.filterRoles = nil
	if s.filter != nil {
		s.filterRoles = s.filter.Roles()
	}
	s.checkRoles()
	s.RequestFilter()
	s.dynamicRolesChanged()
}

// Comparator returns the comparator.
func (s *SortFilter) Comparator() *compare.Comparator {
	return s.comparator
}

// SetComparator replaces the comparator consulted before the default
// value comparison.
func (s *SortFilter) SetComparator(c *compare.Comparator) {
	if c == s.comparator {
		return
	}
	if s.comparatorUnsub != nil {
		s.comparatorUnsub()
		s.comparatorUnsub = nil
	}
	s.comparator = c
	if c != nil {
		s.comparatorUnsub = c.Changed.Subscribe(func(struct{}) { s.RequestSort() })
	}
	s.RequestSort()
	s.ComparatorChanged.Emit(c)
}

// SortRole returns the first sort role, or "".
func (s *SortFilter) SortRole() string {
	if len(s.sortRoles) == 0 {
		return ""
	}
	return s.sortRoles[0]
}

// SetSortRole sorts by a single role. An empty role clears sorting.
func (s *SortFilter) SetSortRole(role string) {
	if role == "" {
		s.SetSortRoles()
		return
	}
	s.SetSortRoles(role)
}

// SortRoles returns the sort roles in priority order.
func (s *SortFilter) SortRoles() []string {
	return slices.Clone(s.sortRoles)
}

// SetSortRoles sets the sort roles in priority order. Clearing them
// restores source order.
func (s *SortFilter) SetSortRoles(roles ...string) {
	if slices.Equal(s.sortRoles, roles) {
		return
	}
	s.sortRoles = slices.Clone(roles)
	s.checkRoles()
	if len(s.sortRoles) == 0 {
		s.sorted = false
		s.RequestFilter()
	} else {
		s.RequestSort()
	}
	s.dynamicRolesChanged()
	s.SortRolesChanged.Emit(s.SortRoles())
}

// SortOrder returns the sort direction.
func (s *SortFilter) SortOrder() Order {
	return s.order
}

// SetSortOrder sets the sort direction.
func (s *SortFilter) SetSortOrder(order Order) {
	if s.order == order {
		return
	}
	s.order = order
	s.RequestSort()
	s.SortOrderChanged.Emit(order)
}

// ChangeSortOrder toggles the sort direction.
func (s *SortFilter) ChangeSortOrder() {
	if s.order == Ascending {
		s.SetSortOrder(Descending)
	} else {
		s.SetSortOrder(Ascending)
	}
}

// DynamicRoles returns the sort and filter roles for the source to watch.
func (s *SortFilter) DynamicRoles() []string {
	roles := append(slices.Clone(s.sortRoles), s.filterRoles...)
	slices.Sort(roles)
	return slices.Compact(roles)
}

func (s *SortFilter) dynamicRolesChanged() {
	if s.source != nil {
		s.source.UpdateDynamicRoles()
	}
}

// checkRoles logs sort and filter roles the source does not know.
func (s *SortFilter) checkRoles() {
	if s.source == nil || !s.source.IsInitialized() {
		return
	}
	for _, role := range s.sortRoles {
		if _, err := s.source.RoleID(role); err != nil {
			s.logger.Warn("Source model doesn't have sort role", zap.String("role", role))
		}
	}
	for _, role := range s.filterRoles {
		if _, err := s.source.RoleID(role); err != nil {
			s.logger.Warn("Source model doesn't have filter role", zap.String("role", role))
		}
	}
}

func (s *SortFilter) roleIDs(names []string) metadata.RoleSet {
	var ids metadata.RoleSet
	if s.source == nil || !s.source.IsInitialized() {
		return ids
	}
	for _, name := range names {
		if id, err := s.source.RoleID(name); err == nil {
			ids = ids.Insert(id)
		}
	}
	return ids
}

// Invalidate requests both a filter and a sort pass.
func (s *SortFilter) Invalidate() {
	s.RequestFilter()
	s.RequestSort()
}

// RequestSort schedules a sort pass. It is a no-op without a source, without
// sort roles or while a pass is already pending.
func (s *SortFilter) RequestSort() {
	if s.sortPending || s.source == nil || len(s.sortRoles) == 0 {
		return
	}
	s.sortPending = true
	s.sortTask = s.loop.Post("proxy.sort", func() error {
		s.sortTask = nil
		s.runSort()
		return nil
	})
}

// RequestFilter schedules a filter pass.
func (s *SortFilter) RequestFilter() {
	if s.filterPending || s.source == nil {
		return
	}
	s.filterPending = true
	s.filterTask = s.loop.Post("proxy.filter", func() error {
		s.filterTask = nil
		return s.runFilter()
	})
}

func (s *SortFilter) cancelPending() {
	s.sortTask.Cancel()
	s.filterTask.Cancel()
	s.sortTask, s.filterTask = nil, nil
	s.sortPending, s.filterPending = false, false
}

func (s *SortFilter) runSort() {
	if !s.enabled {
		return
	}
	s.sortPending = false
	if s.source == nil || len(s.sortRoles) == 0 {
		return
	}
	rows := slices.Clone(s.rows)
	slices.Sort(rows)
	s.sortRows(rows)
	s.sorted = true
	s.setRows(rows)
}

func (s *SortFilter) runFilter() error {
	if !s.enabled {
		return nil
	}
	s.filterPending = false
	if s.source == nil {
		return nil
	}
	rows, err := filter.AcceptsAll(s.filter, s.source, s.source.Len())
	if err != nil {
		return fmt.Errorf("filter rows: %w", err)
	}
	if s.sorted {
		s.sortRows(rows)
	}
	s.setRows(rows)
	return nil
}

// sortRows orders source rows stably by the sort roles.
func (s *SortFilter) sortRows(rows []int) {
	chain := compare.Chain{Roles: s.sortRoles, Comparator: s.comparator}
	slices.SortStableFunc(rows, func(a, b int) int {
		r := chain.Compare(s.source, a, b)
		if s.order == Descending {
			r = r.Reverse()
		}
		switch r {
		case compare.Less:
			return -1
		case compare.Greater:
			return 1
		}
		return 0
	})
}

func (s *SortFilter) setRows(rows []int) {
	if slices.Equal(s.rows, rows) {
		return
	}
	before := len(s.rows)
	s.rows = rows
	s.reindex()
	s.LayoutChanged.Emit(struct{}{})
	if len(rows) != before {
		s.RowCountChanged.Emit(len(rows))
	}
}

func (s *SortFilter) reindex() {
	s.fromSource = make(map[int]int, len(s.rows))
	for row, src := range s.rows {
		s.fromSource[src] = row
	}
}

// OnItemDataChanged reacts to changed roles of source rows. A pass whose
// roles are affected runs at once unless it is already pending. While the
// proxy is disabled the pass is only marked pending and runs on SetEnabled.
func (s *SortFilter) OnItemDataChanged(roles metadata.RoleSet) {
	if !s.enabled {
		if s.roleIDs(s.filterRoles).Intersects(roles) {
			s.filterPending = true
		}
		if len(s.sortRoles) > 0 && s.roleIDs(s.sortRoles).Intersects(roles) {
			s.sortPending = true
		}
		return
	}
	if !s.filterPending && s.roleIDs(s.filterRoles).Intersects(roles) {
		if err := s.runFilter(); err != nil {
			s.logger.Error("Failed to filter rows", zap.Error(err))
		}
	}
	if !s.sortPending && s.roleIDs(s.sortRoles).Intersects(roles) {
		s.runSort()
	}
}

func (s *SortFilter) onDataChanged(change model.DataChange) {
	if len(change.Roles) == 0 {
		s.Invalidate()
		return
	}
	s.OnItemDataChanged(change.Roles)
}

func (s *SortFilter) onRowsInserted(r model.RowRange) {
	rows := make([]int, 0, len(s.rows)+r.Count())
	for _, src := range s.rows {
		if src >= r.First {
			src += r.Count()
		}
		rows = append(rows, src)
	}
	for src := r.First; src <= r.Last; src++ {
		if s.accepts(src) {
			rows = append(rows, src)
		}
	}
	s.setRows(rows)
	s.Invalidate()
}

func (s *SortFilter) onRowsRemoved(r model.RowRange) {
	rows := make([]int, 0, len(s.rows))
	for _, src := range s.rows {
		switch {
		case src < r.First:
			rows = append(rows, src)
		case src > r.Last:
			rows = append(rows, src-r.Count())
		}
	}
	s.setRows(rows)
	s.Invalidate()
}

func (s *SortFilter) onRowsMoved(r model.MoveRange) {
	order := identity(s.source.Len())
	block := slices.Clone(order[r.First : r.Last+1])
	order = slices.Delete(order, r.First, r.Last+1)
	order = slices.Insert(order, r.To, block...)
	moved := make(map[int]int, len(order))
	for now, was := range order {
		moved[was] = now
	}
	rows := make([]int, len(s.rows))
	for i, src := range s.rows {
		rows[i] = moved[src]
	}
	s.setRows(rows)
	s.Invalidate()
}

func (s *SortFilter) onSourceReset() {
	before := len(s.rows)
	s.sorted = false
	s.rows = identity(s.source.Len())
	s.reindex()
	s.ModelReset.Emit(struct{}{})
	if len(s.rows) != before {
		s.RowCountChanged.Emit(len(s.rows))
	}
	s.Invalidate()
}

// accepts evaluates the filter for a freshly inserted row. Errors reject
// the row until the next filter pass.
func (s *SortFilter) accepts(src int) bool {
	if s.filter == nil {
		return true
	}
	ok, err := s.filter.Accepts(s.source, src)
	if err != nil {
		s.logger.Error("Failed to filter inserted row", zap.Int("row", src), zap.Error(err))
		return false
	}
	return ok
}

// Len returns the number of proxy rows.
func (s *SortFilter) Len() int {
	return len(s.rows)
}

// MapToSource returns the source row of a proxy row, or -1.
func (s *SortFilter) MapToSource(row int) int {
	if row < 0 || row >= len(s.rows) {
		return -1
	}
	return s.rows[row]
}

// MapFromSource returns the proxy row of a source row, or -1 when the row
// is filtered out or out of range.
func (s *SortFilter) MapFromSource(src int) int {
	if row, ok := s.fromSource[src]; ok {
		return row
	}
	return -1
}

// At returns the item at a proxy row, or nil.
func (s *SortFilter) At(row int) object.Object {
	src := s.MapToSource(row)
	if src < 0 || s.source == nil {
		return nil
	}
	return s.source.At(src)
}

// Items returns the items in proxy order.
func (s *SortFilter) Items() []object.Object {
	out := make([]object.Object, len(s.rows))
	for i := range s.rows {
		out[i] = s.At(i)
	}
	return out
}

// Data reads a role of the item at a proxy row.
func (s *SortFilter) Data(row int, role any) (any, bool) {
	src := s.MapToSource(row)
	if src < 0 || s.source == nil {
		return nil, false
	}
	return s.source.Data(src, role)
}

// SetData writes a role of the item at a proxy row.
func (s *SortFilter) SetData(row int, role any, value any) error {
	src := s.MapToSource(row)
	if src < 0 || s.source == nil {
		return fmt.Errorf("%w: proxy row %d of %d", model.ErrOutOfRange, row, len(s.rows))
	}
	return s.source.SetData(src, role, value)
}

// IndexOfValue returns the first proxy row whose role equals value, or -1.
func (s *SortFilter) IndexOfValue(role any, value any) int {
	for row := range s.rows {
		if v, ok := s.Data(row, role); ok && compare.Equals(v, value) {
			return row
		}
	}
	return -1
}

func identity(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
