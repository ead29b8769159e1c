package binding

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// ChangeFunc receives the watched roles of owner that changed after one
// notifier fire.
type ChangeFunc func(owner object.Object, changed metadata.RoleSet)

type ownerBinding struct {
	owner  object.Object
	binder *SignalBinder
}

// Engine binds many owners of one node type against a shared watched role set.
type Engine struct {
	catalog     *metadata.RoleCatalog
	watched     metadata.RoleSet
	interesting metadata.NotifierSet
	owners      map[*object.Base]*ownerBinding
	onChange    ChangeFunc
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine for owners described by catalog.
func NewEngine(catalog *metadata.RoleCatalog, onChange ChangeFunc, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:     catalog,
		interesting: make(metadata.NotifierSet),
		owners:      make(map[*object.Base]*ownerBinding),
		onChange:    onChange,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine catalog.
func (e *Engine) Catalog() *metadata.RoleCatalog {
	return e.catalog
}

// Watched returns the watched roles.
func (e *Engine) Watched() metadata.RoleSet {
	return e.watched.Clone()
}

// Interesting returns the notifiers of the watched roles.
func (e *Engine) Interesting() metadata.NotifierSet {
	out := make(metadata.NotifierSet, len(e.interesting))
	for id := range e.interesting {
		out[id] = struct{}{}
	}
	return out
}

// SetWatched replaces the watched roles. Attached owners keep their current
// subscriptions until RebindAll is called. It reports whether the set changed.
func (e *Engine) SetWatched(ids metadata.RoleSet) bool {
	ids = metadata.NewRoleSet(ids...)
	if ids.Equal(e.watched) {
		return false
	}
	e.watched = ids
	e.interesting = e.catalog.NotifiersOf(ids)
	return true
}

// Attach binds owner with the current watched roles.
func (e *Engine) Attach(owner object.Object) bool {
	if object.IsNil(owner) {
		return false
	}
	base := owner.ObjectBase()
	ob, ok := e.owners[base]
	if !ok {
		ob = &ownerBinding{owner: owner}
		ob.binder = NewSignalBinder(e.catalog, func(sender object.Object, id metadata.NotifierID) {
			e.handle(ob, sender, id)
		})
		e.owners[base] = ob
	}
	return e.bind(ob)
}

// Detach drops every subscription of owner.
func (e *Engine) Detach(owner object.Object) bool {
	if object.IsNil(owner) {
		return false
	}
	base := owner.ObjectBase()
	ob, ok := e.owners[base]
	if !ok {
		return false
	}
	ob.binder.UnbindAll()
	delete(e.owners, base)
	return true
}

// IsAttached reports whether owner is managed by the engine.
func (e *Engine) IsAttached(owner object.Object) bool {
	if object.IsNil(owner) {
		return false
	}
	_, ok := e.owners[owner.ObjectBase()]
	return ok
}

// IsBound reports whether owner has at least one live subscription.
func (e *Engine) IsBound(owner object.Object) bool {
	if b := e.Binder(owner); b != nil {
		return b.HasBindings()
	}
	return false
}

// Binder returns the binder of owner, or nil.
func (e *Engine) Binder(owner object.Object) *SignalBinder {
	if object.IsNil(owner) {
		return nil
	}
	if ob, ok := e.owners[owner.ObjectBase()]; ok {
		return ob.binder
	}
	return nil
}

// Len returns the number of attached owners.
func (e *Engine) Len() int {
	return len(e.owners)
}

// RebindAll re-subscribes every attached owner with the current watched roles.
func (e *Engine) RebindAll() {
	for _, ob := range e.owners {
		e.bind(ob)
	}
}

// Close detaches every owner.
func (e *Engine) Close() {
	for base, ob := range e.owners {
		ob.binder.UnbindAll()
		delete(e.owners, base)
	}
}

func (e *Engine) bind(ob *ownerBinding) bool {
	if len(e.interesting) == 0 {
		ob.binder.UnbindAll()
		return false
	}
	return ob.binder.BindRole(ob.owner, metadata.ItemRole, e.interesting)
}

func (e *Engine) handle(ob *ownerBinding, sender object.Object, id metadata.NotifierID) {
	notifier := e.catalog.Notifier(id)
	if notifier == nil {
		return
	}

	var changed metadata.RoleSet
	for _, roleID := range notifier.Roles {
		role, err := e.catalog.Role(roleID)
		if err != nil {
			continue
		}
		hit := e.watched.Intersect(role.DependentRoleIDs)
		if len(hit) == 0 {
			continue
		}
		changed = changed.Union(hit)

		if role.IsObject() {
			var next object.Object
			if v, ok := e.catalog.ReadFromItem(sender, roleID); ok {
				next, _ = v.(object.Object)
			}
			bound := ob.binder.BindRole(next, roleID, e.interesting)
			e.logger.Debug("Rebound object role",
				zap.String("role", role.Name),
				zap.Bool("bound", bound))
		}
	}

	if len(changed) > 0 && e.onChange != nil {
		e.onChange(ob.owner, changed)
	}
}
