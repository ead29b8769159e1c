package metadata

import (
	"errors"
	"slices"
	"strings"
)

// RoleID identifies one role of a RoleCatalog.
type RoleID int

// NotifierID identifies one notifier of a RoleCatalog.
type NotifierID int

const (
	// ItemRole is the pseudo-role standing for the whole item.
	ItemRole RoleID = 0
	// ItemRoleName is the reserved name of ItemRole.
	ItemRoleName = "item"
	// InvalidRole is returned by lookups that fail.
	InvalidRole RoleID = -1
	// NoNotifier marks a role without a change notifier.
	NoNotifier NotifierID = -1
)

var (
	// ErrRoleNotFound is returned when a role id or name is unknown.
	ErrRoleNotFound = errors.New("unknown data role")
	// ErrInvalidRoleSpec is returned for unsupported role flags or spec values.
	ErrInvalidRoleSpec = errors.New("invalid role spec")
	// ErrNotObject is returned when a type is not a node pointer type.
	ErrNotObject = errors.New("type is not an object type")
)

// RoleError reports a failed role lookup.
type RoleError struct {
	Role string
}

func (e RoleError) Error() string {
	return ErrRoleNotFound.Error() + ": " + e.Role
}

// Unwrap makes RoleError match ErrRoleNotFound.
func (e RoleError) Unwrap() error {
	return ErrRoleNotFound
}

// IsRoleNotFound checks if an error is a failed role lookup.
func IsRoleNotFound(err error) bool {
	return errors.Is(err, ErrRoleNotFound)
}

// RoleSet is a sorted set of role ids.
type RoleSet []RoleID

// NewRoleSet builds a set from ids in any order.
func NewRoleSet(ids ...RoleID) RoleSet {
	s := make(RoleSet, len(ids))
	copy(s, ids)
	slices.Sort(s)
	return slices.Compact(s)
}

// Contains reports whether id is in the set.
func (s RoleSet) Contains(id RoleID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// Insert adds id and returns the updated set.
func (s RoleSet) Insert(id RoleID) RoleSet {
	i, ok := slices.BinarySearch(s, id)
	if ok {
		return s
	}
	return slices.Insert(s, i, id)
}

// Union returns the union of s and o.
func (s RoleSet) Union(o RoleSet) RoleSet {
	out := make(RoleSet, 0, len(s)+len(o))
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			out = append(out, s[i])
			i++
		case s[i] > o[j]:
			out = append(out, o[j])
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	out = append(out, s[i:]...)
	return append(out, o[j:]...)
}

// Intersect returns the ids present in both sets.
func (s RoleSet) Intersect(o RoleSet) RoleSet {
	var out RoleSet
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			i++
		case s[i] > o[j]:
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	return out
}

// Intersects reports whether the sets share an id.
func (s RoleSet) Intersects(o RoleSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] < o[j]:
			i++
		case s[i] > o[j]:
			j++
		default:
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same ids.
func (s RoleSet) Equal(o RoleSet) bool {
	return slices.Equal(s, o)
}

// Clone returns a copy of the set.
func (s RoleSet) Clone() RoleSet {
	return slices.Clone(s)
}

// NotifierSet is a set of notifier ids.
type NotifierSet map[NotifierID]struct{}

// Has reports whether id is in the set.
func (s NotifierSet) Has(id NotifierID) bool {
	_, ok := s[id]
	return ok
}

// RoleFlags selects roles by category.
type RoleFlags int

const (
	// ItemRoleFlag selects nothing; the item role is always implicit.
	ItemRoleFlag RoleFlags = 0
	// OwnRoles selects properties declared on the root type itself.
	OwnRoles RoleFlags = 0x1
	// InheritedRoles selects properties declared on embedded types.
	InheritedRoles RoleFlags = 0x2
	// ObjectNameRoles selects objectName properties.
	ObjectNameRoles RoleFlags = 0x4
	// SignalRoles selects bare signal roles.
	SignalRoles RoleFlags = 0x8
	// AllRoles selects own and inherited properties.
	AllRoles = OwnRoles | InheritedRoles
)

// ParseRoleFlags converts the flags suffix of a role spec.
func ParseRoleFlags(s string) (RoleFlags, error) {
	switch strings.TrimSpace(s) {
	case "", "a":
		return AllRoles, nil
	case "aon":
		return AllRoles | ObjectNameRoles, nil
	case "i":
		return InheritedRoles, nil
	case "o":
		return OwnRoles, nil
	case "on":
		return ObjectNameRoles, nil
	}
	return 0, RoleSpecError{Spec: s, Reason: "unsupported role flags"}
}

// RoleSpecError reports a malformed role spec.
type RoleSpecError struct {
	Spec   string
	Reason string
}

func (e RoleSpecError) Error() string {
	return ErrInvalidRoleSpec.Error() + " " + `"` + e.Spec + `": ` + e.Reason
}

// Unwrap makes RoleSpecError match ErrInvalidRoleSpec.
func (e RoleSpecError) Unwrap() error {
	return ErrInvalidRoleSpec
}

// CamelCase converts a dotted role name to the exposed role name,
// for example coord.type.type becomes coordTypeType.
func CamelCase(name string) string {
	parts := strings.Split(name, ".")
	var b strings.Builder
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if first {
			b.WriteString(p)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
