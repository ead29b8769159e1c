package object

// Event is a typed notification with any number of subscribers. Components
// of the model layer expose their change notifications as Event fields.
// The zero value is ready to use.
type Event[T any] struct {
	handlers []*handler[T]
	next     uint64
}

type handler[T any] struct {
	id     uint64
	fn     func(T)
	active bool
}

// Subscribe registers fn and returns a function removing it.
func (e *Event[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	e.next++
	h := &handler[T]{id: e.next, fn: fn, active: true}
	e.handlers = append(e.handlers, h)
	return func() {
		for i, x := range e.handlers {
			if x == h {
				h.active = false
				e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every subscriber in subscription order. Subscribers removed
// during delivery are skipped.
func (e *Event[T]) Emit(v T) {
	if len(e.handlers) == 0 {
		return
	}
	snapshot := make([]*handler[T], len(e.handlers))
	copy(snapshot, e.handlers)
	for _, h := range snapshot {
		if h.active {
			h.fn(v)
		}
	}
}

// Len returns the number of subscribers.
func (e *Event[T]) Len() int {
	return len(e.handlers)
}
