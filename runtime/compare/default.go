// Package compare orders role values. Default is the total value comparator
// used as the fallback of every sort; Comparator is the closed set of
// configurable comparators a sort proxy consults per role.
package compare

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Result is a three way comparison result plus Unknown for comparators
// that cannot decide.
type Result int8

const (
	Unknown Result = iota
	Less
	Equal
	Greater
)

func (r Result) String() string {
	switch r {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	}
	return "unknown"
}

// Reverse swaps Less and Greater.
func (r Result) Reverse() Result {
	switch r {
	case Less:
		return Greater
	case Greater:
		return Less
	}
	return r
}

// FromInt converts a cmp style integer.
func FromInt(c int) Result {
	switch {
	case c < 0:
		return Less
	case c > 0:
		return Greater
	}
	return Equal
}

// Func compares two values.
type Func func(a, b any) Result

var (
	registryMu sync.RWMutex
	registry   = make(map[reflect.Type]Func)
)

// Register installs a comparator for values of type T used by Default.
func Register[T any](fn func(a, b T) Result) {
	t := reflect.TypeFor[T]()
	RegisterType(t, func(a, b any) Result {
		x, ok1 := a.(T)
		y, ok2 := b.(T)
		if !ok1 || !ok2 {
			return Unknown
		}
		return fn(x, y)
	})
}

// RegisterType installs a comparator for values of type t used by Default.
func RegisterType(t reflect.Type, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = fn
}

// Unregister removes the comparator of type t.
func Unregister(t reflect.Type) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, t)
}

func registered(t reflect.Type) (Func, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[t]
	return fn, ok
}

// Equals reports whether Default finds a and b equal.
func Equals(a, b any) bool {
	return Default(a, b) == Equal
}

// Default compares two values by their dynamic type. A missing value
// yields Unknown. Values of different numeric types compare numerically;
// other values of different types are ordered by kind and type name.
// Values without a natural order fall back to comparing their string form.
func Default(a, b any) Result {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return Equal
		}
		return Unknown
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	// Value.Comparable looks through interface fields that may hold slices or maps.
	if ta == tb && va.Comparable() && vb.Comparable() && va.Equal(vb) {
		return Equal
	}

	if ta != tb {
		if isNumber(va.Kind()) && isNumber(vb.Kind()) {
			return compareNumbers(va, vb)
		}
		if va.Kind() != vb.Kind() {
			return FromInt(cmp.Compare(va.Kind(), vb.Kind()))
		}
		return FromInt(strings.Compare(ta.String(), tb.String()))
	}

	if fn, ok := registered(ta); ok {
		return fn(a, b)
	}

	switch x := a.(type) {
	case time.Time:
		return FromInt(x.Compare(b.(time.Time)))
	case []byte:
		return FromInt(bytes.Compare(x, b.([]byte)))
	case *url.URL:
		y := b.(*url.URL)
		if x == nil || y == nil {
			return Unknown
		}
		return FromInt(strings.Compare(x.String(), y.String()))
	}

	switch va.Kind() {
	case reflect.Bool:
		return FromInt(boolInt(va.Bool()) - boolInt(vb.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(cmp.Compare(va.Int(), vb.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return FromInt(cmp.Compare(va.Uint(), vb.Uint()))
	case reflect.Float32, reflect.Float64:
		return compareFloats(va.Float(), vb.Float())
	case reflect.String:
		return FromInt(strings.Compare(va.String(), vb.String()))
	}

	if reflect.DeepEqual(a, b) {
		return Equal
	}
	return FromInt(strings.Compare(fmt.Sprint(a), fmt.Sprint(b)))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func compareNumbers(a, b reflect.Value) Result {
	switch {
	case a.CanInt() && b.CanInt():
		return FromInt(cmp.Compare(a.Int(), b.Int()))
	case a.CanUint() && b.CanUint():
		return FromInt(cmp.Compare(a.Uint(), b.Uint()))
	case a.CanInt() && b.CanUint():
		if a.Int() < 0 {
			return Less
		}
		return FromInt(cmp.Compare(uint64(a.Int()), b.Uint()))
	case a.CanUint() && b.CanInt():
		if b.Int() < 0 {
			return Greater
		}
		return FromInt(cmp.Compare(a.Uint(), uint64(b.Int())))
	}
	x, _ := ToFloat(a.Interface())
	y, _ := ToFloat(b.Interface())
	return compareFloats(x, y)
}

func compareFloats(a, b float64) Result {
	if math.IsNaN(a) || math.IsNaN(b) {
		if math.IsNaN(a) && math.IsNaN(b) {
			return Equal
		}
		return Unknown
	}
	return FromInt(cmp.Compare(a, b))
}

// ToFloat converts a numeric value to float64.
func ToFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}
