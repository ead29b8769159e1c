package filter

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/conduit-lang/objectmodel/runtime/compare"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Comparison is the operator of a comparison filter.
type Comparison int

const (
	Equal Comparison = iota
	NotEqual
	Less
	LessOrEqual
	Greater
	GreaterOrEqual
)

var comparisonNames = []string{"==", "!=", "<", "<=", ">", ">="}

func (c Comparison) String() string {
	if int(c) < len(comparisonNames) {
		return comparisonNames[c]
	}
	return fmt.Sprintf("Comparison(%d)", int(c))
}

// ParseComparison converts an operator such as "<=" or "le".
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(s) {
	case "==", "=", "eq":
		return Equal, nil
	case "!=", "<>", "ne":
		return NotEqual, nil
	case "<", "lt":
		return Less, nil
	case "<=", "le":
		return LessOrEqual, nil
	case ">", "gt":
		return Greater, nil
	case ">=", "ge":
		return GreaterOrEqual, nil
	}
	return Equal, fmt.Errorf("%w: %q", ErrUnsupportedOperator, s)
}

// RangeMode selects how a range filter treats its bounds.
type RangeMode int

const (
	// Inside accepts from < v < to.
	Inside RangeMode = iota
	// Outside accepts v < from or v > to.
	Outside
	// InsideOrEqual accepts from <= v <= to.
	InsideOrEqual
	// OutsideOrEqual accepts v <= from or v >= to.
	OutsideOrEqual
)

var rangeModeNames = []string{"inside", "outside", "inside_or_equal", "outside_or_equal"}

func (m RangeMode) String() string {
	if int(m) < len(rangeModeNames) {
		return rangeModeNames[m]
	}
	return fmt.Sprintf("RangeMode(%d)", int(m))
}

// ParseRangeMode converts a range mode name.
func ParseRangeMode(s string) (RangeMode, error) {
	if i := slices.Index(rangeModeNames, strings.ToLower(s)); i >= 0 {
		return RangeMode(i), nil
	}
	return Inside, fmt.Errorf("%w: range mode %q", ErrUnsupportedOperator, s)
}

// NewComparison creates a filter comparing role with value.
func NewComparison(role string, op Comparison, value any) *Filter {
	f := newFilter(ComparisonKind, []string{role})
	f.comparison = op
	f.value = value
	return f
}

// NewIntEnum creates a filter accepting rows whose role is one of values.
func NewIntEnum(role string, values ...int) *Filter {
	f := newFilter(IntEnumKind, []string{role})
	f.intValues = make(map[int]struct{}, len(values))
	for _, v := range values {
		f.intValues[v] = struct{}{}
	}
	return f
}

// NewStringEnum creates a filter accepting rows whose role is one of values.
func NewStringEnum(role string, values ...string) *Filter {
	f := newFilter(StringEnumKind, []string{role})
	f.stringValues = make(map[string]struct{}, len(values))
	for _, v := range values {
		f.stringValues[v] = struct{}{}
	}
	return f
}

// NewRange creates a range filter. Reversed bounds are swapped.
func NewRange(role string, from, to float64, mode RangeMode) *Filter {
	f := newFilter(RangeKind, []string{role})
	f.from, f.to = min(from, to), max(from, to)
	f.rangeMode = mode
	return f
}

// NewSubstring creates a case insensitive substring filter. An empty
// substring accepts every row.
func NewSubstring(role, substring string) *Filter {
	f := newFilter(SubstringKind, []string{role})
	f.substring = substring
	f.caseInsensitive = true
	return f
}

// NewRegexp creates a filter accepting rows whose role matches pattern.
func NewRegexp(role, pattern string) (*Filter, error) {
	f := newFilter(RegexpKind, []string{role})
	if err := f.SetPattern(pattern); err != nil {
		return nil, err
	}
	return f, nil
}

// NewNullObject creates a filter accepting rows whose role holds a non nil
// node. Without roles it checks the item itself.
func NewNullObject(roles ...string) *Filter {
	if len(roles) == 0 {
		roles = []string{metadata.ItemRoleName}
	}
	return newFilter(NullObjectKind, roles)
}

// NewCustom creates a filter calling pred with each role value.
func NewCustom(pred func(v any) bool, roles ...string) *Filter {
	f := newFilter(CustomKind, roles)
	f.predicate = pred
	return f
}

// Value returns the value of a comparison filter.
func (f *Filter) Value() any {
	return f.value
}

// SetValue sets the value of a comparison filter. A nil value rejects every row.
func (f *Filter) SetValue(v any) {
	if reflect.DeepEqual(f.value, v) {
		return
	}
	f.value = v
	f.changed()
}

// Comparison returns the operator of a comparison filter.
func (f *Filter) Comparison() Comparison {
	return f.comparison
}

// SetComparison sets the operator of a comparison filter.
func (f *Filter) SetComparison(op Comparison) {
	if f.comparison == op {
		return
	}
	f.comparison = op
	f.changed()
}

// Ints returns the values of an int enumeration filter, sorted.
func (f *Filter) Ints() []int {
	return slices.Sorted(maps.Keys(f.intValues))
}

// HasInt reports whether v is accepted by an int enumeration filter.
func (f *Filter) HasInt(v int) bool {
	_, ok := f.intValues[v]
	return ok
}

// AddInt adds v to an int enumeration filter.
func (f *Filter) AddInt(v int) {
	if f.HasInt(v) {
		return
	}
	if f.intValues == nil {
		f.intValues = make(map[int]struct{})
	}
	f.intValues[v] = struct{}{}
	f.changed()
}

// RemoveInt removes v from an int enumeration filter.
func (f *Filter) RemoveInt(v int) {
	if !f.HasInt(v) {
		return
	}
	delete(f.intValues, v)
	f.changed()
}

// SetInt adds or removes v.
func (f *Filter) SetInt(v int, enabled bool) {
	if enabled {
		f.AddInt(v)
	} else {
		f.RemoveInt(v)
	}
}

// SetInts replaces the values of an int enumeration filter. Values must
// convert to int.
func (f *Filter) SetInts(values ...any) error {
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("can not convert value to int: %w", err)
		}
		set[n] = struct{}{}
	}
	f.intValues = set
	f.changed()
	return nil
}

// Strings returns the values of a string enumeration filter, sorted.
func (f *Filter) Strings() []string {
	return slices.Sorted(maps.Keys(f.stringValues))
}

// HasString reports whether v is accepted by a string enumeration filter.
func (f *Filter) HasString(v string) bool {
	_, ok := f.stringValues[v]
	return ok
}

// AddString adds v to a string enumeration filter.
func (f *Filter) AddString(v string) {
	if f.HasString(v) {
		return
	}
	if f.stringValues == nil {
		f.stringValues = make(map[string]struct{})
	}
	f.stringValues[v] = struct{}{}
	f.changed()
}

// RemoveString removes v from a string enumeration filter.
func (f *Filter) RemoveString(v string) {
	if !f.HasString(v) {
		return
	}
	delete(f.stringValues, v)
	f.changed()
}

// SetStrings replaces the values of a string enumeration filter.
func (f *Filter) SetStrings(values ...string) {
	f.stringValues = make(map[string]struct{}, len(values))
	for _, v := range values {
		f.stringValues[v] = struct{}{}
	}
	f.changed()
}

// Range returns the bounds of a range filter.
func (f *Filter) Range() (from, to float64) {
	return f.from, f.to
}

// SetFrom sets the lower bound. A value above the upper bound swaps them.
func (f *Filter) SetFrom(from float64) {
	f.from, f.to = min(from, f.to), max(from, f.to)
	f.changed()
}

// SetTo sets the upper bound. A value below the lower bound swaps them.
func (f *Filter) SetTo(to float64) {
	f.from, f.to = min(to, f.from), max(to, f.from)
	f.changed()
}

// RangeMode returns the range check mode.
func (f *Filter) RangeMode() RangeMode {
	return f.rangeMode
}

// SetRangeMode sets the range check mode.
func (f *Filter) SetRangeMode(mode RangeMode) {
	if f.rangeMode == mode {
		return
	}
	f.rangeMode = mode
	f.changed()
}

// Substring returns the substring of a substring filter.
func (f *Filter) Substring() string {
	return f.substring
}

// SetSubstring sets the substring of a substring filter.
func (f *Filter) SetSubstring(s string) {
	if f.substring == s {
		return
	}
	f.substring = s
	f.changed()
}

// CaseInsensitive reports whether substring and pattern matching ignore case.
func (f *Filter) CaseInsensitive() bool {
	return f.caseInsensitive
}

// SetCaseInsensitive sets whether matching ignores case.
func (f *Filter) SetCaseInsensitive(v bool) {
	if f.caseInsensitive == v {
		return
	}
	f.caseInsensitive = v
	if f.re != nil {
		if err := f.compile(f.pattern); err != nil {
			return
		}
	}
	f.changed()
}

// Pattern returns the pattern of a regexp filter.
func (f *Filter) Pattern() string {
	return f.pattern
}

// SetPattern compiles and sets the pattern of a regexp filter. The old
// pattern is kept when pattern does not compile.
func (f *Filter) SetPattern(pattern string) error {
	if f.re != nil && f.pattern == pattern {
		return nil
	}
	if err := f.compile(pattern); err != nil {
		return err
	}
	f.changed()
	return nil
}

func (f *Filter) compile(pattern string) error {
	expr := pattern
	if f.caseInsensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compile filter pattern: %w", err)
	}
	f.re = re
	f.pattern = pattern
	return nil
}

// SetPredicate replaces the function of a custom filter.
func (f *Filter) SetPredicate(pred func(v any) bool) {
	f.predicate = pred
	f.changed()
}

// accept evaluates a leaf predicate for one role value. ok is false when
// the row has no value for the role.
func (f *Filter) accept(v any, ok bool) (bool, error) {
	switch f.kind {
	case ComparisonKind:
		if f.value == nil || !ok || v == nil {
			return false, nil
		}
		res := compare.Default(v, f.value)
		if res == compare.Unknown {
			return false, fmt.Errorf("%w: %v %s %v", ErrUnknownComparison, v, f.comparison, f.value)
		}
		return f.compareResult(res), nil

	case IntEnumKind:
		n, converted := toInt(v)
		return ok && converted && f.HasInt(n), nil

	case StringEnumKind:
		s := toString(v)
		return ok && s != "" && f.HasString(s), nil

	case RangeKind:
		x, converted := toFloat(v)
		if !ok || !converted {
			return false, nil
		}
		switch f.rangeMode {
		case Inside:
			return x > f.from && x < f.to, nil
		case Outside:
			return x < f.from || x > f.to, nil
		case InsideOrEqual:
			return x >= f.from && x <= f.to, nil
		case OutsideOrEqual:
			return x <= f.from || x >= f.to, nil
		}
		return true, nil

	case SubstringKind:
		if f.substring == "" {
			return true, nil
		}
		s := toString(v)
		if f.caseInsensitive {
			return strings.Contains(strings.ToLower(s), strings.ToLower(f.substring)), nil
		}
		return strings.Contains(s, f.substring), nil

	case RegexpKind:
		if f.re == nil {
			return true, nil
		}
		return f.re.MatchString(toString(v)), nil

	case NullObjectKind:
		obj, isObj := v.(object.Object)
		return ok && isObj && !object.IsNil(obj), nil

	case CustomKind:
		if f.predicate == nil {
			return true, nil
		}
		return f.predicate(v), nil
	}
	return true, nil
}

func (f *Filter) compareResult(res compare.Result) bool {
	switch f.comparison {
	case Equal:
		return res == compare.Equal
	case NotEqual:
		return res != compare.Equal
	case Less:
		return res == compare.Less
	case LessOrEqual:
		return res == compare.Less || res == compare.Equal
	case Greater:
		return res == compare.Greater
	case GreaterOrEqual:
		return res == compare.Greater || res == compare.Equal
	}
	return false
}

func toInt(v any) (int, bool) {
	if x, ok := compare.ToFloat(v); ok {
		return int(x), true
	}
	n, err := cast.ToIntE(v)
	return n, err == nil
}

func toFloat(v any) (float64, bool) {
	if x, ok := compare.ToFloat(v); ok {
		return x, true
	}
	x, err := cast.ToFloat64E(v)
	return x, err == nil
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
