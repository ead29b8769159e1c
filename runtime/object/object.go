// Package object provides the host object model consumed by the role catalog:
// property-bearing nodes that can emit named zero-argument signals.
//
// A node type embeds Base and declares its properties as exported struct
// fields tagged with `om:"name,notify=signalName"`. Bare signals that are not
// backed by a property are declared as blank fields of type Signal:
//
//	type Coord struct {
//		object.Base
//		X float64 `om:"x,notify=xChanged"`
//		_ object.Signal `om:"changed"`
//	}
//
// Nodes are not safe for concurrent use. All mutation is expected to happen
// on the goroutine that runs the owning event loop.
package object

import (
	"reflect"

	"github.com/google/uuid"
)

// Signal marks a blank struct field as a bare signal declaration.
type Signal struct{}

// Well-known signal names.
const (
	ObjectNameChanged = "objectNameChanged"
	Destroyed         = "destroyed"
)

// Object is implemented by every node type through the embedded Base.
type Object interface {
	ObjectBase() *Base
}

// Base is embedded in every node type.
type Base struct {
	ObjectName string `om:"objectName,notify=objectNameChanged"`

	id        uuid.UUID
	slots     map[string][]*slot
	nextSlot  uint64
	destroyed bool
}

type slot struct {
	id        uint64
	fn        func()
	connected bool
}

// Connection identifies one subscription made with Connect.
type Connection struct {
	base   *Base
	signal string
	id     uint64
}

// ObjectBase implements Object.
func (b *Base) ObjectBase() *Base {
	return b
}

// ID returns a stable identity for the node, generated on first use.
func (b *Base) ID() uuid.UUID {
	if b.id == uuid.Nil {
		b.id = uuid.New()
	}
	return b.id
}

// GetObjectName returns the object name.
func (b *Base) GetObjectName() string {
	return b.ObjectName
}

// SetObjectName sets the object name and emits objectNameChanged when it changes.
func (b *Base) SetObjectName(name string) {
	if b.ObjectName == name {
		return
	}
	b.ObjectName = name
	b.Emit(ObjectNameChanged)
}

// Connect subscribes fn to the named signal.
func (b *Base) Connect(signal string, fn func()) Connection {
	if b.destroyed || fn == nil {
		return Connection{}
	}
	if b.slots == nil {
		b.slots = make(map[string][]*slot)
	}
	b.nextSlot++
	b.slots[signal] = append(b.slots[signal], &slot{id: b.nextSlot, fn: fn, connected: true})
	return Connection{base: b, signal: signal, id: b.nextSlot}
}

// OnDestroyed subscribes fn to the destruction of the node.
func (b *Base) OnDestroyed(fn func()) Connection {
	return b.Connect(Destroyed, fn)
}

// Emit invokes every slot connected to signal, in connection order.
// Slots disconnected while the signal is being delivered are skipped.
func (b *Base) Emit(signal string) {
	slots := b.slots[signal]
	if len(slots) == 0 {
		return
	}
	snapshot := make([]*slot, len(slots))
	copy(snapshot, slots)
	for _, s := range snapshot {
		if s.connected {
			s.fn()
		}
	}
}

// Receivers returns the number of live connections to signal.
func (b *Base) Receivers(signal string) int {
	return len(b.slots[signal])
}

// Destroy emits destroyed and drops every connection. Subsequent calls do nothing.
func (b *Base) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.Emit(Destroyed)
	for _, slots := range b.slots {
		for _, s := range slots {
			s.connected = false
		}
	}
	b.slots = nil
}

// IsDestroyed reports whether Destroy has been called.
func (b *Base) IsDestroyed() bool {
	return b.destroyed
}

func (b *Base) disconnect(signal string, id uint64) bool {
	slots := b.slots[signal]
	for i, s := range slots {
		if s.id != id {
			continue
		}
		s.connected = false
		b.slots[signal] = append(slots[:i:i], slots[i+1:]...)
		if len(b.slots[signal]) == 0 {
			delete(b.slots, signal)
		}
		return true
	}
	return false
}

// Disconnect removes the subscription. It reports whether anything was removed.
func (c Connection) Disconnect() bool {
	if c.base == nil {
		return false
	}
	return c.base.disconnect(c.signal, c.id)
}

// Valid reports whether the connection refers to a subscription.
func (c Connection) Valid() bool {
	return c.base != nil
}

// Signal returns the signal name the connection was made to.
func (c Connection) Signal() string {
	return c.signal
}

// IsNil reports whether obj is nil or a typed nil pointer.
func IsNil(obj Object) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
