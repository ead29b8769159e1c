package compare

import (
	"reflect"
	"slices"

	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Kind selects the comparison a Comparator performs.
type Kind int

const (
	// DefaultKind compares values with Default.
	DefaultKind Kind = iota
	// FuncKind compares values with a user function.
	FuncKind
	// ObjectListKind compares lists of nodes element wise by a value role.
	ObjectListKind
	// ValueListKind compares lists of values element wise.
	ValueListKind
	// GroupKind dispatches to the first child owning the role.
	GroupKind
)

func (k Kind) String() string {
	switch k {
	case DefaultKind:
		return "default"
	case FuncKind:
		return "func"
	case ObjectListKind:
		return "object_list"
	case ValueListKind:
		return "value_list"
	case GroupKind:
		return "group"
	}
	return "unknown"
}

// Rows gives comparators access to row values.
type Rows interface {
	Data(row int, role any) (any, bool)
}

// Comparator orders the values of the roles it owns. A disabled
// comparator has no influence and yields Unknown.
type Comparator struct {
	kind      Kind
	enabled   bool
	roles     []string
	fn        Func
	valueRole string
	children  []*Comparator
	unsub     map[*Comparator]func()

	// Changed fires when the configuration changes.
	Changed object.Event[struct{}]
}

func newComparator(kind Kind, roles []string) *Comparator {
	c := &Comparator{kind: kind, enabled: true}
	c.roles = normalizeRoles(roles)
	return c
}

// NewDefault creates a comparator using Default for roles.
func NewDefault(roles ...string) *Comparator {
	return newComparator(DefaultKind, roles)
}

// NewFunc creates a comparator calling fn for roles.
func NewFunc(fn Func, roles ...string) *Comparator {
	c := newComparator(FuncKind, roles)
	c.fn = fn
	return c
}

// NewObjectList creates a comparator for roles holding lists of nodes,
// compared element wise by valueRole.
func NewObjectList(valueRole string, roles ...string) *Comparator {
	c := newComparator(ObjectListKind, roles)
	c.valueRole = valueRole
	return c
}

// NewValueList creates a comparator for roles holding lists of values.
func NewValueList(roles ...string) *Comparator {
	return newComparator(ValueListKind, roles)
}

// NewGroup creates a comparator dispatching to children.
func NewGroup(children ...*Comparator) *Comparator {
	c := newComparator(GroupKind, nil)
	for _, child := range children {
		c.Add(child)
	}
	return c
}

func normalizeRoles(roles []string) []string {
	out := slices.Clone(roles)
	slices.Sort(out)
	return slices.Compact(out)
}

// Kind returns the comparator kind.
func (c *Comparator) Kind() Kind {
	return c.kind
}

// Enabled reports whether the comparator takes part in comparisons.
func (c *Comparator) Enabled() bool {
	return c.enabled
}

// SetEnabled turns the comparator on or off.
func (c *Comparator) SetEnabled(enabled bool) {
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	c.Changed.Emit(struct{}{})
}

// Roles returns the owned roles. A group owns the roles of its enabled children.
func (c *Comparator) Roles() []string {
	if c.kind != GroupKind {
		return slices.Clone(c.roles)
	}
	var out []string
	for _, child := range c.children {
		if child.enabled {
			out = append(out, child.Roles()...)
		}
	}
	return normalizeRoles(out)
}

// SetRoles replaces the owned roles of a leaf comparator.
func (c *Comparator) SetRoles(roles ...string) {
	roles = normalizeRoles(roles)
	if slices.Equal(c.roles, roles) {
		return
	}
	c.roles = roles
	c.Changed.Emit(struct{}{})
}

// HasRole reports whether the comparator owns role.
func (c *Comparator) HasRole(role string) bool {
	if c.kind == GroupKind {
		return c.child(role) != nil
	}
	_, found := slices.BinarySearch(c.roles, role)
	return found
}

// SetFunc replaces the function of a FuncKind comparator.
func (c *Comparator) SetFunc(fn Func) {
	c.fn = fn
	c.Changed.Emit(struct{}{})
}

// ValueRole returns the element role of an ObjectListKind comparator.
func (c *Comparator) ValueRole() string {
	return c.valueRole
}

// SetValueRole sets the element role of an ObjectListKind comparator.
func (c *Comparator) SetValueRole(role string) {
	if c.valueRole == role {
		return
	}
	c.valueRole = role
	c.Changed.Emit(struct{}{})
}

// Children returns the children of a group.
func (c *Comparator) Children() []*Comparator {
	return slices.Clone(c.children)
}

// Add appends a child to a group. Child changes propagate to the group.
func (c *Comparator) Add(child *Comparator) {
	if child == nil || slices.Contains(c.children, child) {
		return
	}
	if c.unsub == nil {
		c.unsub = make(map[*Comparator]func())
	}
	c.children = append(c.children, child)
	c.unsub[child] = child.Changed.Subscribe(func(struct{}) {
		c.Changed.Emit(struct{}{})
	})
	c.Changed.Emit(struct{}{})
}

// Remove removes a child from a group.
func (c *Comparator) Remove(child *Comparator) bool {
	i := slices.Index(c.children, child)
	if i < 0 {
		return false
	}
	c.children = slices.Delete(c.children, i, i+1)
	if unsub, ok := c.unsub[child]; ok {
		unsub()
		delete(c.unsub, child)
	}
	c.Changed.Emit(struct{}{})
	return true
}

func (c *Comparator) child(role string) *Comparator {
	for _, child := range c.children {
		if child.enabled && child.HasRole(role) {
			return child
		}
	}
	return nil
}

// CompareRows compares role of two rows. It yields Unknown when the
// comparator is disabled or does not own role.
func (c *Comparator) CompareRows(role string, rows Rows, left, right int) Result {
	if !c.enabled || !c.HasRole(role) {
		return Unknown
	}
	if c.kind == GroupKind {
		return c.child(role).CompareRows(role, rows, left, right)
	}
	lv, _ := rows.Data(left, role)
	rv, _ := rows.Data(right, role)
	return c.Compare(role, lv, rv)
}

// Compare compares two values of role.
func (c *Comparator) Compare(role string, a, b any) Result {
	switch c.kind {
	case DefaultKind:
		return Default(a, b)
	case FuncKind:
		if c.fn == nil {
			return Unknown
		}
		return c.fn(a, b)
	case ObjectListKind:
		return compareObjectLists(a, b, c.valueRole)
	case ValueListKind:
		return compareValueLists(a, b)
	case GroupKind:
		if child := c.child(role); child != nil {
			return child.Compare(role, a, b)
		}
	}
	return Unknown
}

func compareNil(a, b any) (Result, bool) {
	an, bn := isNil(a), isNil(b)
	switch {
	case an && bn:
		return Unknown, true
	case an:
		return Greater, true
	case bn:
		return Less, true
	}
	return Unknown, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func listOf(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, false
	}
	return rv, true
}

func compareValueLists(a, b any) Result {
	if r, done := compareNil(a, b); done {
		return r
	}
	la, ok1 := listOf(a)
	lb, ok2 := listOf(b)
	if !ok1 || !ok2 {
		return Unknown
	}
	n := min(la.Len(), lb.Len())
	for i := 0; i < n; i++ {
		if r := Default(la.Index(i).Interface(), lb.Index(i).Interface()); r != Equal {
			return r
		}
	}
	return FromInt(la.Len() - lb.Len())
}

func compareObjectLists(a, b any, valueRole string) Result {
	if r, done := compareNil(a, b); done {
		return r
	}
	la, ok1 := listOf(a)
	lb, ok2 := listOf(b)
	if !ok1 || !ok2 {
		return Unknown
	}
	if la.Type().Elem() != lb.Type().Elem() {
		return Unknown
	}

	n := min(la.Len(), lb.Len())
	for i := 0; i < n; i++ {
		x, okx := la.Index(i).Interface().(object.Object)
		y, oky := lb.Index(i).Interface().(object.Object)
		if !okx || !oky {
			return Unknown
		}
		if r, done := compareNil(x, y); done {
			if r == Unknown {
				continue
			}
			return r
		}
		if reflect.TypeOf(x) != reflect.TypeOf(y) {
			return Unknown
		}
		catalog, err := metadata.LookupObject(x)
		if err != nil {
			return Unknown
		}
		id := catalog.RoleID(valueRole)
		if id == metadata.InvalidRole {
			return Unknown
		}
		xv, _ := catalog.ReadFromRoot(x, id)
		yv, _ := catalog.ReadFromRoot(y, id)
		if r := Default(xv, yv); r != Equal {
			return r
		}
	}
	return FromInt(la.Len() - lb.Len())
}
