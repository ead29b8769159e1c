package binding

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// ErrNoSender is returned by PropertyBinder reads and writes without a sender.
var ErrNoSender = errors.New("sender is not set")

// PropertyBinder watches a role set on a single sender.
type PropertyBinder struct {
	sender   object.Object
	engine   *Engine
	roles    metadata.RoleSet
	enabled  bool
	receiver func(metadata.RoleSet)
	opts     []EngineOption
}

// NewPropertyBinder creates an enabled binder calling receiver with the
// changed roles.
func NewPropertyBinder(receiver func(metadata.RoleSet), opts ...EngineOption) *PropertyBinder {
	return &PropertyBinder{
		enabled:  true,
		receiver: receiver,
		opts:     opts,
	}
}

// Sender returns the bound sender.
func (p *PropertyBinder) Sender() object.Object {
	return p.sender
}

// Catalog returns the sender's catalog, or nil without sender.
func (p *PropertyBinder) Catalog() *metadata.RoleCatalog {
	if p.engine == nil {
		return nil
	}
	return p.engine.Catalog()
}

// Roles returns the watched role ids.
func (p *PropertyBinder) Roles() metadata.RoleSet {
	return p.roles.Clone()
}

// Enabled reports whether the binder subscribes.
func (p *PropertyBinder) Enabled() bool {
	return p.enabled
}

// IsBound reports whether at least one notifier is subscribed.
func (p *PropertyBinder) IsBound() bool {
	return p.engine != nil && p.engine.IsBound(p.sender)
}

// SetEnabled turns subscriptions on or off.
func (p *PropertyBinder) SetEnabled(enabled bool) {
	if p.enabled == enabled {
		return
	}
	p.enabled = enabled
	p.update()
}

// Bind watches the roles selected by spec on sender. A nil sender unbinds.
// Changing the sender to another node type resets the watched roles.
func (p *PropertyBinder) Bind(sender object.Object, spec any) error {
	if err := p.setSender(sender); err != nil {
		return err
	}
	if p.engine == nil {
		return nil
	}
	ids, err := p.engine.Catalog().ParseRoleSpec(spec)
	if err != nil {
		return err
	}
	p.roles = ids
	p.engine.SetWatched(ids)
	p.update()
	return nil
}

// BindRoles is Bind with resolved role ids.
func (p *PropertyBinder) BindRoles(sender object.Object, ids metadata.RoleSet) error {
	return p.Bind(sender, ids)
}

// Reset drops the sender and every subscription.
func (p *PropertyBinder) Reset() {
	if p.engine != nil {
		p.engine.Close()
	}
	p.engine = nil
	p.sender = nil
	p.roles = nil
}

func (p *PropertyBinder) setSender(sender object.Object) error {
	if object.IsNil(sender) {
		p.Reset()
		return nil
	}
	if p.sender != nil && p.sender.ObjectBase() == sender.ObjectBase() {
		return nil
	}

	catalog, err := metadata.LookupObject(sender)
	if err != nil {
		return fmt.Errorf("bind properties: %w", err)
	}
	if p.engine != nil && p.engine.Catalog() == catalog {
		p.engine.Detach(p.sender)
		p.sender = sender
		return nil
	}

	p.Reset()
	p.sender = sender
	p.engine = NewEngine(catalog, func(_ object.Object, changed metadata.RoleSet) {
		if p.receiver != nil {
			p.receiver(changed)
		}
	}, p.opts...)
	return nil
}

func (p *PropertyBinder) update() {
	if p.engine == nil {
		return
	}
	if p.enabled {
		p.engine.Attach(p.sender)
	} else {
		p.engine.Detach(p.sender)
	}
}

// RoleID resolves a dotted role name on the sender's catalog.
func (p *PropertyBinder) RoleID(name string) (metadata.RoleID, error) {
	if p.engine == nil {
		return metadata.InvalidRole, ErrNoSender
	}
	role, err := p.engine.Catalog().RoleByName(name)
	if err != nil {
		return metadata.InvalidRole, err
	}
	return role.ID, nil
}

// RoleName returns the dotted name of a role id.
func (p *PropertyBinder) RoleName(id metadata.RoleID) (string, error) {
	if p.engine == nil {
		return "", ErrNoSender
	}
	role, err := p.engine.Catalog().Role(id)
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

// Read reads a role of the sender. The boolean is false when there is no value.
func (p *PropertyBinder) Read(id metadata.RoleID) (any, bool) {
	if p.engine == nil {
		return nil, false
	}
	return p.engine.Catalog().ReadFromRoot(p.sender, id)
}

// Write writes a role of the sender.
func (p *PropertyBinder) Write(id metadata.RoleID, value any) error {
	if p.engine == nil {
		return ErrNoSender
	}
	return p.engine.Catalog().WriteToRoot(p.sender, id, value)
}
