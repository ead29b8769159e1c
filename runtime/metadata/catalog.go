package metadata

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/conduit-lang/objectmodel/runtime/object"
)

// RoleKind classifies a role.
type RoleKind int

const (
	// ItemKind is the kind of ItemRole.
	ItemKind RoleKind = iota
	// ValueKind roles hold plain values.
	ValueKind
	// ObjectKind roles hold nested nodes.
	ObjectKind
	// SignalKind roles stand for a bare signal and have no storage.
	SignalKind
)

func (k RoleKind) String() string {
	switch k {
	case ItemKind:
		return "item"
	case ValueKind:
		return "value"
	case ObjectKind:
		return "object"
	case SignalKind:
		return "signal"
	}
	return "unknown"
}

// RoleInfo describes one role of a catalog.
type RoleInfo struct {
	ID   RoleID
	Name string
	Kind RoleKind
	// Parent is InvalidRole for ItemRole and ItemRole for root level roles.
	Parent   RoleID
	Children []RoleID
	// DependentRoleIDs holds the role itself and every role nested below it.
	DependentRoleIDs RoleSet
	Inherited        bool
	Notifier         NotifierID
	// Property is nil for ItemRole and signal roles.
	Property *PropertyDescriptor
	// Owner describes the type declaring the property or signal.
	Owner *TypeDescriptor
	// ObjectType is the nested node type of object roles and the root type of ItemRole.
	ObjectType reflect.Type
	// Signal is the signal name of signal roles.
	Signal string

	path []RoleID
}

// IsSignal reports whether the role stands for a bare signal.
func (r *RoleInfo) IsSignal() bool {
	return r.Kind == SignalKind
}

// IsObject reports whether the role holds a nested node.
func (r *RoleInfo) IsObject() bool {
	return r.Kind == ObjectKind
}

// IsObjectName reports whether the role is an objectName property.
func (r *RoleInfo) IsObjectName() bool {
	return r.Kind != SignalKind && strings.HasSuffix(r.Name, "objectName")
}

// Notifier is one change notification channel; several roles may share it.
type Notifier struct {
	ID          NotifierID
	Signal      string
	SignalIndex int
	Roles       []RoleID
}

// RoleCatalog is the immutable role structure of one node type.
type RoleCatalog struct {
	typ          reflect.Type
	introspector TypeIntrospector
	roles        []*RoleInfo
	byName       map[string]RoleID
	notifiers    []*Notifier
}

// Build reflects t and produces its catalog. Use Lookup for the shared cache.
func Build(t reflect.Type, introspector TypeIntrospector) (*RoleCatalog, error) {
	if introspector == nil {
		introspector = DefaultIntrospector
	}
	if !IsObjectType(t) {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, t)
	}

	c := &RoleCatalog{
		typ:          t,
		introspector: introspector,
		byName:       make(map[string]RoleID),
	}

	item := &RoleInfo{
		ID:               ItemRole,
		Name:             ItemRoleName,
		Kind:             ItemKind,
		Parent:           InvalidRole,
		Notifier:         NoNotifier,
		ObjectType:       t,
		DependentRoleIDs: RoleSet{ItemRole},
	}
	c.add(item)

	visited := make(map[reflect.Type]bool)
	if err := c.parse(t, item, "", visited); err != nil {
		return nil, fmt.Errorf("failed to build role catalog for %v: %w", t, err)
	}
	if desc, err := introspector.Describe(t); err == nil {
		item.Owner = desc
	}
	return c, nil
}

func (c *RoleCatalog) add(role *RoleInfo) {
	c.roles = append(c.roles, role)
	c.byName[role.Name] = role.ID
}

func (c *RoleCatalog) newRole(parent *RoleInfo, prefix, name string) *RoleInfo {
	fullName := name
	if prefix != "" {
		fullName = prefix + "." + name
	}
	role := &RoleInfo{
		ID:       RoleID(len(c.roles)),
		Name:     fullName,
		Parent:   parent.ID,
		Notifier: NoNotifier,
	}
	role.DependentRoleIDs = RoleSet{role.ID}
	role.path = append(append([]RoleID(nil), parent.path...), role.ID)
	parent.Children = append(parent.Children, role.ID)
	c.add(role)
	return role
}

func (c *RoleCatalog) newNotifier(signal string, index int, role *RoleInfo) *Notifier {
	n := &Notifier{
		ID:          NotifierID(len(c.notifiers)),
		Signal:      signal,
		SignalIndex: index,
		Roles:       []RoleID{role.ID},
	}
	c.notifiers = append(c.notifiers, n)
	role.Notifier = n.ID
	return n
}

// parse walks the properties of t depth first in declaration order. visited
// holds the types on the current path only.
func (c *RoleCatalog) parse(t reflect.Type, parent *RoleInfo, prefix string, visited map[reflect.Type]bool) error {
	if visited[t] {
		return nil
	}
	desc, err := c.introspector.Describe(t)
	if err != nil {
		return err
	}
	visited[t] = true
	defer delete(visited, t)

	scanNotifiers := make(map[int]*Notifier)
	inherited := func(declared bool) bool {
		if parent.ID == ItemRole {
			return declared
		}
		return parent.Inherited
	}

	for _, prop := range desc.Properties {
		if !prop.Readable {
			continue
		}
		role := c.newRole(parent, prefix, prop.Name)
		role.Kind = ValueKind
		role.Property = prop
		role.Owner = desc
		role.Inherited = inherited(prop.Inherited)

		if prop.Notify >= 0 {
			if n, ok := scanNotifiers[prop.Notify]; ok {
				n.Roles = append(n.Roles, role.ID)
				role.Notifier = n.ID
			} else {
				scanNotifiers[prop.Notify] = c.newNotifier(desc.Signals[prop.Notify].Name, prop.Notify, role)
			}
		}

		if prop.IsObject() {
			role.Kind = ObjectKind
			role.ObjectType = prop.ObjectType
			if err := c.parse(prop.ObjectType, role, role.Name, visited); err != nil {
				return err
			}
		}
		parent.DependentRoleIDs = parent.DependentRoleIDs.Union(role.DependentRoleIDs)
	}

	for _, sig := range desc.Signals {
		if !sig.Bare || sig.Name == object.Destroyed {
			continue
		}
		if _, ok := scanNotifiers[sig.Index]; ok {
			continue
		}
		role := c.newRole(parent, prefix, sig.Name)
		role.Kind = SignalKind
		role.Signal = sig.Name
		role.Owner = desc
		role.Inherited = inherited(sig.Inherited)
		scanNotifiers[sig.Index] = c.newNotifier(sig.Name, sig.Index, role)
		parent.DependentRoleIDs = parent.DependentRoleIDs.Union(role.DependentRoleIDs)
	}
	return nil
}

// Type returns the node pointer type the catalog describes.
func (c *RoleCatalog) Type() reflect.Type {
	return c.typ
}

// TypeName returns the name of the root struct type.
func (c *RoleCatalog) TypeName() string {
	return c.typ.Elem().Name()
}

// Introspector returns the introspector used to read and write roles.
func (c *RoleCatalog) Introspector() TypeIntrospector {
	return c.introspector
}

// Len returns the number of roles including ItemRole.
func (c *RoleCatalog) Len() int {
	return len(c.roles)
}

// Roles returns every role ordered by id.
func (c *RoleCatalog) Roles() []*RoleInfo {
	out := make([]*RoleInfo, len(c.roles))
	copy(out, c.roles)
	return out
}

// ItemRoleInfo returns the item root role.
func (c *RoleCatalog) ItemRoleInfo() *RoleInfo {
	return c.roles[ItemRole]
}

// Role returns the role with the given id.
func (c *RoleCatalog) Role(id RoleID) (*RoleInfo, error) {
	if id < 0 || int(id) >= len(c.roles) {
		return nil, RoleError{Role: fmt.Sprintf("%d", id)}
	}
	return c.roles[id], nil
}

// RoleByName returns the role with the given dotted name.
func (c *RoleCatalog) RoleByName(name string) (*RoleInfo, error) {
	id, ok := c.byName[name]
	if !ok {
		return nil, RoleError{Role: name}
	}
	return c.roles[id], nil
}

// RoleID returns the id of a dotted name, or InvalidRole.
func (c *RoleCatalog) RoleID(name string) RoleID {
	id, ok := c.byName[name]
	if !ok {
		return InvalidRole
	}
	return id
}

// MustRoleID is like RoleID but panics when the name is unknown.
func (c *RoleCatalog) MustRoleID(name string) RoleID {
	id, ok := c.byName[name]
	if !ok {
		panic(RoleError{Role: name})
	}
	return id
}

// RoleIDs returns a name to id map of every role.
func (c *RoleCatalog) RoleIDs() map[string]RoleID {
	out := make(map[string]RoleID, len(c.byName))
	for name, id := range c.byName {
		out[name] = id
	}
	return out
}

// RoleNames returns the exposed camelCase names of ids plus the item role.
func (c *RoleCatalog) RoleNames(ids RoleSet) map[RoleID]string {
	out := map[RoleID]string{ItemRole: ItemRoleName}
	for _, id := range ids {
		if id <= ItemRole || int(id) >= len(c.roles) {
			continue
		}
		out[id] = CamelCase(c.roles[id].Name)
	}
	return out
}

// Notifier returns the notifier with the given id, or nil.
func (c *RoleCatalog) Notifier(id NotifierID) *Notifier {
	if id < 0 || int(id) >= len(c.notifiers) {
		return nil
	}
	return c.notifiers[id]
}

// Notifiers returns every notifier ordered by id.
func (c *RoleCatalog) Notifiers() []*Notifier {
	out := make([]*Notifier, len(c.notifiers))
	copy(out, c.notifiers)
	return out
}

// NotifiersOf returns the notifiers of the given roles.
func (c *RoleCatalog) NotifiersOf(ids RoleSet) NotifierSet {
	out := make(NotifierSet)
	for _, id := range ids {
		if id < 0 || int(id) >= len(c.roles) {
			continue
		}
		if n := c.roles[id].Notifier; n != NoNotifier {
			out[n] = struct{}{}
		}
	}
	return out
}

// ReadFromItem reads the role from the object that declares it. For signal
// roles the object itself is returned. The boolean is false when there is
// no value.
func (c *RoleCatalog) ReadFromItem(owner object.Object, id RoleID) (any, bool) {
	if object.IsNil(owner) || id < 0 || int(id) >= len(c.roles) {
		return nil, false
	}
	role := c.roles[id]
	switch role.Kind {
	case ItemKind, SignalKind:
		return owner, true
	}
	v, err := c.introspector.Read(owner, role.Property)
	if err != nil {
		return nil, false
	}
	if role.Kind == ObjectKind {
		if obj, ok := v.(object.Object); !ok || object.IsNil(obj) {
			return nil, true
		}
	}
	return v, true
}

// Owner resolves the object declaring the role, starting from root and
// descending through intermediate object roles.
func (c *RoleCatalog) Owner(root object.Object, id RoleID) (object.Object, bool) {
	if object.IsNil(root) || id < 0 || int(id) >= len(c.roles) {
		return nil, false
	}
	path := c.roles[id].path
	current := root
	for i := 0; i+1 < len(path); i++ {
		v, ok := c.ReadFromItem(current, path[i])
		if !ok || v == nil {
			return nil, false
		}
		next, isObj := v.(object.Object)
		if !isObj || object.IsNil(next) {
			return nil, false
		}
		current = next
	}
	return current, true
}

// ReadFromRoot reads the role starting from root. A nil intermediate object
// yields no value.
func (c *RoleCatalog) ReadFromRoot(root object.Object, id RoleID) (any, bool) {
	owner, ok := c.Owner(root, id)
	if !ok {
		return nil, false
	}
	return c.ReadFromItem(owner, id)
}

// WriteToItem writes the role on the object that declares it.
func (c *RoleCatalog) WriteToItem(owner object.Object, id RoleID, value any) error {
	role, err := c.Role(id)
	if err != nil {
		return err
	}
	if object.IsNil(owner) {
		return fmt.Errorf("write %s: nil object", role.Name)
	}
	if role.Property == nil {
		return fmt.Errorf("write %s: role has no property", role.Name)
	}
	return c.introspector.Write(owner, role.Property, value)
}

// WriteToRoot writes the role starting from root. A nil intermediate object
// is an error and nothing is written.
func (c *RoleCatalog) WriteToRoot(root object.Object, id RoleID, value any) error {
	role, err := c.Role(id)
	if err != nil {
		return err
	}
	owner, ok := c.Owner(root, id)
	if !ok {
		return fmt.Errorf("write %s: path is not reachable", role.Name)
	}
	return c.WriteToItem(owner, id, value)
}

// WriteTo prints the catalog as a plain table.
func (c *RoleCatalog) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s role catalog\n", c.TypeName())
	fmt.Fprintf(&b, "%-4s %-32s %-8s %-9s %-9s %s\n", "ID", "ROLE", "KIND", "NOTIFIER", "INHERITED", "DEPENDENT ROLES")
	for _, role := range c.roles[1:] {
		deps := make([]string, len(role.DependentRoleIDs))
		for i, d := range role.DependentRoleIDs {
			deps[i] = fmt.Sprint(int(d))
		}
		notifier := "-"
		if role.Notifier != NoNotifier {
			notifier = fmt.Sprint(int(role.Notifier))
		}
		fmt.Fprintf(&b, "%-4d %-32s %-8s %-9s %-9t %s\n", role.ID, role.Name, role.Kind, notifier, role.Inherited, strings.Join(deps, " "))
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
