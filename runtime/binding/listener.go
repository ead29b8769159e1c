package binding

import (
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Listener reports coalesced property changes of a single target.
type Listener struct {
	loop       *loop.Loop
	binder     *PropertyBinder
	coalescer  *loop.Coalescer[metadata.RoleID]
	target     object.Object
	targetConn object.Connection
	roles      any
	listening  bool
	logger     *zap.Logger

	// PropertiesChanged carries the union of changed roles since the last emission.
	PropertiesChanged object.Event[metadata.RoleSet]
	TargetChanged     object.Event[object.Object]
	ListeningChanged  object.Event[bool]
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the listener logger.
func WithListenerLogger(logger *zap.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSchedule sets the PropertiesChanged delay configuration.
func WithSchedule(schedule loop.Schedule) ListenerOption {
	return func(l *Listener) {
		l.coalescer.Timer().SetSchedule(schedule)
	}
}

// NewListener creates a listener scheduling its emissions on lp.
func NewListener(lp *loop.Loop, opts ...ListenerOption) *Listener {
	if lp == nil {
		lp = loop.Default()
	}
	l := &Listener{loop: lp, logger: zap.NewNop()}
	l.coalescer = loop.NewCoalescer(lp, "listener.propertiesChanged", func(ids []metadata.RoleID) {
		l.PropertiesChanged.Emit(metadata.RoleSet(ids))
	})
	for _, opt := range opts {
		opt(l)
	}
	l.binder = NewPropertyBinder(func(changed metadata.RoleSet) {
		l.coalescer.Add(changed...)
	}, WithLogger(l.logger))
	return l
}

// Target returns the observed object.
func (l *Listener) Target() object.Object {
	return l.target
}

// SetTarget observes target. The listener forgets the target when it is destroyed.
func (l *Listener) SetTarget(target object.Object) error {
	if object.IsNil(target) {
		target = nil
	}
	if sameObject(l.target, target) {
		return nil
	}
	l.targetConn.Disconnect()
	l.targetConn = object.Connection{}
	l.target = target
	if target != nil {
		l.targetConn = target.ObjectBase().OnDestroyed(func() {
			if err := l.SetTarget(nil); err != nil {
				l.logger.Error("Failed to clear destroyed target", zap.Error(err))
			}
		})
	}
	err := l.update()
	l.TargetChanged.Emit(target)
	return err
}

// Roles returns the role spec.
func (l *Listener) Roles() any {
	return l.roles
}

// SetRoles sets the role spec, see metadata.RoleCatalog.ParseRoleSpec.
func (l *Listener) SetRoles(spec any) error {
	l.roles = spec
	return l.update()
}

// RoleIDs returns the resolved watched roles.
func (l *Listener) RoleIDs() metadata.RoleSet {
	return l.binder.Roles()
}

// Enabled reports whether the listener subscribes.
func (l *Listener) Enabled() bool {
	return l.binder.Enabled()
}

// SetEnabled turns the listener on or off.
func (l *Listener) SetEnabled(enabled bool) {
	l.binder.SetEnabled(enabled)
	l.setListening(l.binder.IsBound())
}

// Listening reports whether at least one notifier is subscribed.
func (l *Listener) Listening() bool {
	return l.listening
}

// SetDelay sets the PropertiesChanged delay policy.
func (l *Listener) SetDelay(policy loop.DelayPolicy, delay time.Duration) {
	s := l.coalescer.Timer().Schedule()
	s.Policy = policy
	s.Delay = delay
	l.coalescer.Timer().SetSchedule(s)
}

// SetInterval sets the PropertiesChanged repeat interval.
func (l *Listener) SetInterval(d time.Duration) {
	l.coalescer.Timer().SetInterval(d)
}

// Catalog returns the target's catalog, or nil without target.
func (l *Listener) Catalog() *metadata.RoleCatalog {
	return l.binder.Catalog()
}

// RoleID resolves a dotted role name of the target.
func (l *Listener) RoleID(name string) (metadata.RoleID, error) {
	return l.binder.RoleID(name)
}

// RoleName returns the dotted name of a role id of the target.
func (l *Listener) RoleName(id metadata.RoleID) (string, error) {
	return l.binder.RoleName(id)
}

// Read reads a role of the target.
func (l *Listener) Read(id metadata.RoleID) (any, bool) {
	return l.binder.Read(id)
}

// ReadByName reads a role of the target by dotted name.
func (l *Listener) ReadByName(name string) (any, bool) {
	id, err := l.binder.RoleID(name)
	if err != nil {
		return nil, false
	}
	return l.binder.Read(id)
}

// Write writes a role of the target.
func (l *Listener) Write(id metadata.RoleID, value any) error {
	return l.binder.Write(id, value)
}

// WriteByName writes a role of the target by dotted name.
func (l *Listener) WriteByName(name string, value any) error {
	id, err := l.binder.RoleID(name)
	if err != nil {
		return err
	}
	return l.binder.Write(id, value)
}

// Close emits pending changes and drops the target.
func (l *Listener) Close() {
	l.coalescer.Flush()
	l.coalescer.Close()
	l.targetConn.Disconnect()
	l.binder.Reset()
	l.target = nil
	l.setListening(false)
}

func (l *Listener) update() error {
	err := l.binder.Bind(l.target, l.roles)
	l.setListening(l.binder.IsBound())
	return err
}

func (l *Listener) setListening(listening bool) {
	if l.listening == listening {
		return
	}
	l.listening = listening
	l.ListeningChanged.Emit(listening)
}

func sameObject(a, b object.Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ObjectBase() == b.ObjectBase()
}
