// Package filter implements boolean predicate trees evaluated per row of a
// list model.
//
// A Filter is either a leaf predicate over one or more role values or a
// group combining child filters with AND or OR. Leaf predicates are a
// closed set of kinds evaluated by a single function; there is no
// predicate interface to implement.
//
// A disabled filter accepts everything. Inside an OR group a disabled
// child counts as a rejection so that switching it off never widens the
// match set; inside an AND group it counts as an acceptance.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

var (
	// ErrUnknownComparison is returned when two present values cannot be ordered.
	ErrUnknownComparison = errors.New("unknown result of comparison")
	// ErrUnsupportedOperator is returned for unknown operator names.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrMissingRole is returned when a filter role is not a role of the model.
	ErrMissingRole = errors.New("filter role is not set in model")
	// ErrNilFilter is returned when a nil child is added to a group.
	ErrNilFilter = errors.New("filter can't be nil")
)

// Rows gives filters access to row values.
type Rows interface {
	Data(row int, role any) (any, bool)
	RoleID(role any) (metadata.RoleID, error)
}

// Kind selects the predicate of a Filter.
type Kind int

const (
	GroupKind Kind = iota
	ComparisonKind
	IntEnumKind
	StringEnumKind
	RangeKind
	SubstringKind
	RegexpKind
	NullObjectKind
	CustomKind
)

var kindNames = map[Kind]string{
	GroupKind:      "group",
	ComparisonKind: "comparison",
	IntEnumKind:    "int_enum",
	StringEnumKind: "string_enum",
	RangeKind:      "range",
	SubstringKind:  "substring",
	RegexpKind:     "regexp",
	NullObjectKind: "null_object",
	CustomKind:     "custom",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Operator combines the results of several roles or children.
type Operator int

const (
	And Operator = iota
	Or
)

func (o Operator) String() string {
	if o == Or {
		return "or"
	}
	return "and"
}

// ParseOperator converts "and" or "or".
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "and", "AND", "&&":
		return And, nil
	case "or", "OR", "||":
		return Or, nil
	}
	return And, fmt.Errorf("%w: %q", ErrUnsupportedOperator, s)
}

// Filter is a node of a filter tree. The zero value is not usable; build
// filters with the New functions.
type Filter struct {
	kind     Kind
	enabled  bool
	inverted bool
	op       Operator
	roles    []string

	comparison Comparison
	value      any

	intValues    map[int]struct{}
	stringValues map[string]struct{}

	from, to  float64
	rangeMode RangeMode

	substring       string
	caseInsensitive bool

	pattern string
	re      *regexp.Regexp

	predicate func(v any) bool

	children []*Filter
	unsub    map[*Filter][]func()

	// FilterChanged fires when the accepted set may have changed. It is
	// silent while the filter is disabled.
	FilterChanged object.Event[struct{}]
	// RolesChanged fires when Roles changes, including on enable and disable.
	RolesChanged object.Event[struct{}]
}

func newFilter(kind Kind, roles []string) *Filter {
	return &Filter{kind: kind, enabled: true, roles: normalize(roles)}
}

func normalize(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// NewGroup creates a group filter. Nil children are skipped.
func NewGroup(op Operator, children ...*Filter) *Filter {
	f := newFilter(GroupKind, nil)
	f.op = op
	for _, child := range children {
		if child != nil {
			f.attach(child)
		}
	}
	return f
}

// Kind returns the filter kind.
func (f *Filter) Kind() Kind {
	return f.kind
}

// Enabled reports whether the filter takes part in evaluation.
func (f *Filter) Enabled() bool {
	return f.enabled
}

// SetEnabled turns the filter on or off.
func (f *Filter) SetEnabled(enabled bool) {
	if f.enabled == enabled {
		return
	}
	f.enabled = enabled
	f.RolesChanged.Emit(struct{}{})
}

// Inverted reports whether the result is negated.
func (f *Filter) Inverted() bool {
	return f.inverted
}

// SetInverted negates the result.
func (f *Filter) SetInverted(inverted bool) {
	if f.inverted == inverted {
		return
	}
	f.inverted = inverted
	f.changed()
}

// Operator returns how roles or children are combined.
func (f *Filter) Operator() Operator {
	return f.op
}

// SetOperator sets how roles or children are combined.
func (f *Filter) SetOperator(op Operator) {
	if f.op == op {
		return
	}
	f.op = op
	f.changed()
}

// Roles returns the roles the filter reads. A disabled filter reads none;
// a group reads the roles of its enabled children.
func (f *Filter) Roles() []string {
	if !f.enabled {
		return nil
	}
	if f.kind != GroupKind {
		return slices.Clone(f.roles)
	}
	var out []string
	for _, child := range f.children {
		out = append(out, child.Roles()...)
	}
	return normalize(out)
}

// SetRoles sets the roles of a leaf filter.
func (f *Filter) SetRoles(roles ...string) {
	if f.kind == GroupKind {
		return
	}
	roles = normalize(roles)
	if slices.Equal(f.roles, roles) {
		return
	}
	f.roles = roles
	f.rolesChanged()
}

// HasRole reports whether role is among the roles.
func (f *Filter) HasRole(role string) bool {
	return slices.Contains(f.Roles(), role)
}

func (f *Filter) changed() {
	if !f.enabled {
		return
	}
	f.FilterChanged.Emit(struct{}{})
}

func (f *Filter) rolesChanged() {
	if !f.enabled {
		return
	}
	f.RolesChanged.Emit(struct{}{})
}

// Children returns the children of a group.
func (f *Filter) Children() []*Filter {
	return slices.Clone(f.children)
}

// Len returns the number of children of a group.
func (f *Filter) Len() int {
	return len(f.children)
}

// At returns the child at i, or nil.
func (f *Filter) At(i int) *Filter {
	if i < 0 || i >= len(f.children) {
		return nil
	}
	return f.children[i]
}

// Add appends child to a group.
func (f *Filter) Add(child *Filter) error {
	if child == nil {
		return ErrNilFilter
	}
	if f.kind != GroupKind {
		return fmt.Errorf("add child to %s filter: %w", f.kind, ErrUnsupportedOperator)
	}
	f.attach(child)
	f.rolesChanged()
	return nil
}

func (f *Filter) attach(child *Filter) {
	if f.unsub == nil {
		f.unsub = make(map[*Filter][]func())
	}
	f.children = append(f.children, child)
	f.unsub[child] = append(f.unsub[child],
		child.FilterChanged.Subscribe(func(struct{}) { f.changed() }),
		child.RolesChanged.Subscribe(func(struct{}) { f.rolesChanged() }))
}

// Remove removes child from a group and reports whether it was found.
func (f *Filter) Remove(child *Filter) bool {
	i := slices.Index(f.children, child)
	if i < 0 {
		return false
	}
	f.children = slices.Delete(f.children, i, i+1)
	if !slices.Contains(f.children, child) {
		for _, unsub := range f.unsub[child] {
			unsub()
		}
		delete(f.unsub, child)
	}
	f.rolesChanged()
	return true
}

// Clear removes every child of a group.
func (f *Filter) Clear() {
	if len(f.children) == 0 {
		return
	}
	for _, unsubs := range f.unsub {
		for _, unsub := range unsubs {
			unsub()
		}
	}
	f.unsub = nil
	f.children = nil
	f.rolesChanged()
}

// Accepts evaluates the filter for row.
func (f *Filter) Accepts(rows Rows, row int) (bool, error) {
	if !f.enabled {
		return true, nil
	}
	var ok bool
	var err error
	if f.kind == GroupKind {
		ok, err = f.acceptsGroup(rows, row)
	} else {
		ok, err = f.acceptsRoles(rows, row)
	}
	if err != nil {
		return false, err
	}
	return ok != f.inverted, nil
}

func (f *Filter) acceptsGroup(rows Rows, row int) (bool, error) {
	switch f.op {
	case And:
		for _, child := range f.children {
			ok, err := child.Accepts(rows, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, child := range f.children {
			if !child.enabled {
				continue
			}
			ok, err := child.Accepts(rows, row)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrUnsupportedOperator, f.op)
}

func (f *Filter) acceptsRoles(rows Rows, row int) (bool, error) {
	if len(f.roles) == 0 {
		v, ok := rows.Data(row, metadata.ItemRole)
		return f.accept(v, ok)
	}
	for _, role := range f.roles {
		id, err := rows.RoleID(role)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrMissingRole, role)
		}
		v, ok := rows.Data(row, id)
		accepted, err := f.accept(v, ok)
		if err != nil {
			return false, fmt.Errorf("filter %s on %s: %w", f.kind, role, err)
		}
		switch {
		case f.op == And && !accepted:
			return false, nil
		case f.op == Or && accepted:
			return true, nil
		}
	}
	return f.op == And, nil
}

// AcceptsAll returns the rows of rows accepted by f, in order.
func AcceptsAll(f *Filter, rows Rows, n int) ([]int, error) {
	out := make([]int, 0, n)
	for row := 0; row < n; row++ {
		ok := true
		if f != nil {
			var err error
			if ok, err = f.Accepts(rows, row); err != nil {
				return nil, err
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}
