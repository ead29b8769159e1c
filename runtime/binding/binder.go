// Package binding subscribes to the change notifiers of live object graphs.
//
// A SignalBinder holds the subscriptions of one owner, one slot per
// notifier id of the owner's RoleCatalog. An Engine manages the binders of
// many owners sharing one catalog and one watched role set, turns notifier
// fires into changed role sets and moves subscriptions onto new nested
// objects when an object valued property is replaced.
package binding

import (
	"maps"
	"slices"

	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Binding is one live subscription of a notifier on a sender.
type Binding struct {
	Sender   object.Object
	Notifier metadata.NotifierID
	conn     object.Connection
}

// SlotFunc receives the notifier fires of a SignalBinder.
type SlotFunc func(sender object.Object, notifier metadata.NotifierID)

// SignalBinder keeps at most one subscription per notifier id.
type SignalBinder struct {
	catalog  *metadata.RoleCatalog
	slot     SlotFunc
	bindings []*Binding
	count    int
}

// NewSignalBinder creates a binder delivering fires to slot.
func NewSignalBinder(catalog *metadata.RoleCatalog, slot SlotFunc) *SignalBinder {
	return &SignalBinder{
		catalog:  catalog,
		slot:     slot,
		bindings: make([]*Binding, len(catalog.Notifiers())),
	}
}

// Catalog returns the catalog notifier ids refer to.
func (b *SignalBinder) Catalog() *metadata.RoleCatalog {
	return b.catalog
}

// Len returns the number of live bindings.
func (b *SignalBinder) Len() int {
	return b.count
}

// HasBindings reports whether anything is bound.
func (b *SignalBinder) HasBindings() bool {
	return b.count > 0
}

// Binding returns the binding of a notifier, or nil.
func (b *SignalBinder) Binding(id metadata.NotifierID) *Binding {
	if id < 0 || int(id) >= len(b.bindings) {
		return nil
	}
	return b.bindings[id]
}

// IsBound reports whether the notifier has a live binding.
func (b *SignalBinder) IsBound(id metadata.NotifierID) bool {
	return b.Binding(id) != nil
}

// Bind subscribes the notifier on sender. Binding the same sender again is
// a no-op; binding another sender replaces the previous subscription.
func (b *SignalBinder) Bind(sender object.Object, id metadata.NotifierID) bool {
	if object.IsNil(sender) {
		return false
	}
	notifier := b.catalog.Notifier(id)
	if notifier == nil {
		return false
	}
	base := sender.ObjectBase()
	if existing := b.bindings[id]; existing != nil {
		if existing.Sender.ObjectBase() == base && !base.IsDestroyed() {
			return true
		}
		b.Unbind(id)
	}
	conn := base.Connect(notifier.Signal, func() {
		b.fire(base, id)
	})
	if !conn.Valid() {
		return false
	}
	b.bindings[id] = &Binding{Sender: sender, Notifier: id, conn: conn}
	b.count++
	return true
}

// Unbind removes the binding of a notifier.
func (b *SignalBinder) Unbind(id metadata.NotifierID) bool {
	existing := b.Binding(id)
	if existing == nil {
		return false
	}
	existing.conn.Disconnect()
	b.bindings[id] = nil
	b.count--
	return true
}

// UnbindSender removes every binding on sender.
func (b *SignalBinder) UnbindSender(sender object.Object) int {
	if object.IsNil(sender) {
		return 0
	}
	base := sender.ObjectBase()
	n := 0
	for id, existing := range b.bindings {
		if existing != nil && existing.Sender.ObjectBase() == base {
			b.Unbind(metadata.NotifierID(id))
			n++
		}
	}
	return n
}

// UnbindAll removes every binding.
func (b *SignalBinder) UnbindAll() {
	for id := range b.bindings {
		b.Unbind(metadata.NotifierID(id))
	}
}

// BindRole walks the children of role on sender and subscribes every
// notifier that is interesting or that guards an object holding something
// interesting. Notifiers of the subtree that are no longer needed are
// unbound. A nil sender unbinds the whole subtree. It reports whether
// anything in the subtree is bound. An empty interesting set does nothing.
func (b *SignalBinder) BindRole(sender object.Object, role metadata.RoleID, interesting metadata.NotifierSet) bool {
	if len(interesting) == 0 {
		return false
	}
	plan := make(map[metadata.NotifierID]object.Object)
	visited := make(metadata.NotifierSet)
	bound := b.plan(sender, role, interesting, plan, visited)

	for _, id := range slices.Sorted(maps.Keys(visited)) {
		if s, ok := plan[id]; ok {
			b.Bind(s, id)
		} else {
			b.Unbind(id)
		}
	}
	return bound
}

func (b *SignalBinder) plan(sender object.Object, roleID metadata.RoleID, interesting metadata.NotifierSet,
	plan map[metadata.NotifierID]object.Object, visited metadata.NotifierSet) bool {
	role, err := b.catalog.Role(roleID)
	if err != nil {
		return false
	}
	live := !object.IsNil(sender)

	bound := false
	for _, childID := range role.Children {
		child, err := b.catalog.Role(childID)
		if err != nil {
			continue
		}

		childBound := false
		watchSlot := false
		if child.IsObject() {
			var next object.Object
			if live {
				if v, ok := b.catalog.ReadFromItem(sender, childID); ok {
					next, _ = v.(object.Object)
				}
			}
			childBound = b.plan(next, childID, interesting, plan, visited)
			// A nil pointer slot is still watched so that assigning it is seen.
			watchSlot = b.watchesBelow(child, interesting)
		}

		if child.Notifier != metadata.NoNotifier {
			visited[child.Notifier] = struct{}{}
			if live && (childBound || watchSlot || interesting.Has(child.Notifier)) {
				plan[child.Notifier] = sender
				childBound = true
			}
		}
		bound = bound || childBound
	}
	return bound
}

func (b *SignalBinder) watchesBelow(role *metadata.RoleInfo, interesting metadata.NotifierSet) bool {
	for _, id := range role.DependentRoleIDs {
		if id == role.ID {
			continue
		}
		if dep, err := b.catalog.Role(id); err == nil && interesting.Has(dep.Notifier) {
			return true
		}
	}
	return false
}

// fire ignores notifiers that are no longer bound to the emitting sender.
func (b *SignalBinder) fire(base *object.Base, id metadata.NotifierID) {
	existing := b.Binding(id)
	if existing == nil || existing.Sender.ObjectBase() != base {
		return
	}
	if b.slot != nil {
		b.slot(existing.Sender, id)
	}
}
