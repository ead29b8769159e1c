package settings

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/binding"
	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Listener persists the watched properties of one target under a category.
// The category is a group below the group the listener was added in.
type Listener struct {
	*binding.Listener
	category string

	CategoryChanged object.Event[string]
}

// NewListener creates a listener for target watching every own and
// inherited property. Pass a different spec to SetRoles to narrow it.
func NewListener(lp *loop.Loop, target object.Object, category string, opts ...binding.ListenerOption) (*Listener, error) {
	l := &Listener{Listener: binding.NewListener(lp, opts...), category: category}
	if err := l.SetRoles(metadata.AllRoles); err != nil {
		return nil, err
	}
	if err := l.SetTarget(target); err != nil {
		return nil, err
	}
	return l, nil
}

// Category returns the group the target's properties are stored in.
func (l *Listener) Category() string {
	return l.category
}

// SetCategory moves the listener to another group. Installed listeners
// reload from the new group.
func (l *Listener) SetCategory(category string) {
	if l.category == category {
		return
	}
	l.category = category
	l.CategoryChanged.Emit(category)
}

// persistable returns the watched roles that carry a storable value.
func (l *Listener) persistable(ids metadata.RoleSet) []*metadata.RoleInfo {
	catalog := l.Catalog()
	if catalog == nil {
		return nil
	}
	var out []*metadata.RoleInfo
	for _, id := range ids {
		role, err := catalog.Role(id)
		if err != nil || role.IsObject() || role.IsSignal() || role.Property == nil {
			continue
		}
		out = append(out, role)
	}
	return out
}

type installed struct {
	listener *Listener
	group    string
	unsubs   []func()
}

func (in *installed) prefix() string {
	return join(in.group, in.listener.category)
}

// AddListener installs l in the current group and loads its target from
// the store. Adding an installed listener again is a no-op.
func (s *Settings) AddListener(l *Listener) {
	if l == nil || s.indexOf(l) >= 0 {
		return
	}
	in := &installed{listener: l, group: s.Group()}
	in.unsubs = []func(){
		l.PropertiesChanged.Subscribe(func(changed metadata.RoleSet) {
			s.save(in, changed)
		}),
		l.TargetChanged.Subscribe(func(object.Object) {
			s.load(in)
		}),
		l.CategoryChanged.Subscribe(func(string) {
			s.load(in)
		}),
	}
	s.listeners = append(s.listeners, in)
	s.load(in)
}

// RemoveListener uninstalls l. The store keeps its last saved values.
func (s *Settings) RemoveListener(l *Listener) bool {
	i := s.indexOf(l)
	if i < 0 {
		return false
	}
	in := s.listeners[i]
	for _, unsub := range in.unsubs {
		unsub()
	}
	s.listeners = slices.Delete(s.listeners, i, i+1)
	return true
}

// ClearListeners uninstalls every listener.
func (s *Settings) ClearListeners() {
	for len(s.listeners) > 0 {
		s.RemoveListener(s.listeners[0].listener)
	}
}

// Listeners returns the installed listeners in install order.
func (s *Settings) Listeners() []*Listener {
	out := make([]*Listener, len(s.listeners))
	for i, in := range s.listeners {
		out[i] = in.listener
	}
	return out
}

// Load writes the stored values into every installed listener's target.
func (s *Settings) Load() {
	for _, in := range slices.Clone(s.listeners) {
		s.load(in)
	}
}

// Save writes every watched value of every installed listener's target.
func (s *Settings) Save() {
	for _, in := range s.listeners {
		s.save(in, in.listener.RoleIDs())
	}
}

func (s *Settings) indexOf(l *Listener) int {
	return slices.IndexFunc(s.listeners, func(in *installed) bool {
		return in.listener == l
	})
}

// load keeps the target's current value for keys missing from the store.
func (s *Settings) load(in *installed) {
	l := in.listener
	if l.Target() == nil {
		return
	}
	ctx, cancel := s.context()
	defer cancel()

	prefix := in.prefix()
	for _, role := range l.persistable(l.RoleIDs()) {
		key := join(prefix, role.Name)
		v, err := s.store.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to load setting", zap.String("key", key), zap.Error(err))
			continue
		}
		if err := l.Write(role.ID, v); err != nil {
			s.logger.Warn("Stored setting does not fit property",
				zap.String("key", key),
				zap.Any("value", v),
				zap.Error(err))
		}
	}
}

func (s *Settings) save(in *installed, changed metadata.RoleSet) {
	l := in.listener
	if l.Target() == nil {
		return
	}
	ctx, cancel := s.context()
	defer cancel()

	prefix := in.prefix()
	for _, role := range l.persistable(changed.Intersect(l.RoleIDs())) {
		v, ok := l.Read(role.ID)
		if !ok {
			continue
		}
		key := join(prefix, role.Name)
		if err := s.store.Set(ctx, key, v); err != nil {
			s.logger.Error("Failed to save setting", zap.String("key", key), zap.Error(err))
		}
	}
}
