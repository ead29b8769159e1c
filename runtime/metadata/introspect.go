package metadata

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/conduit-lang/objectmodel/runtime/object"
)

const tagName = "om"

var (
	objectInterface = reflect.TypeOf((*object.Object)(nil)).Elem()
	signalType      = reflect.TypeOf(object.Signal{})
	stringerType    = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// TypeIntrospector enumerates the properties and signals of a node type and
// reads or writes properties on instances of it.
type TypeIntrospector interface {
	// Describe returns the descriptor of a node pointer type such as *Coord.
	Describe(t reflect.Type) (*TypeDescriptor, error)
	// Read returns the current value of the property on obj.
	Read(obj object.Object, prop *PropertyDescriptor) (any, error)
	// Write assigns value to the property on obj, emitting its notify signal.
	Write(obj object.Object, prop *PropertyDescriptor, value any) error
}

// TypeDescriptor describes one node type.
type TypeDescriptor struct {
	Type       reflect.Type
	Name       string
	Properties []*PropertyDescriptor
	// Signals holds every signal of the type: notify signals in order of first
	// use followed by bare signals. The slice index is the signal index.
	Signals []SignalDescriptor
}

// PropertyDescriptor describes one property of a node type.
type PropertyDescriptor struct {
	Index    int
	Name     string
	Type     reflect.Type
	Readable bool
	Writable bool
	// Notify is the index into TypeDescriptor.Signals, or -1.
	Notify int
	Enum   bool
	// Inherited is set for properties declared on an embedded struct.
	Inherited bool
	// ObjectType is the nested node type for object-valued properties.
	ObjectType reflect.Type

	field  []int
	setter string
}

// SignalDescriptor describes one signal of a node type.
type SignalDescriptor struct {
	Index int
	Name  string
	// Bare is set for signals not backing any property.
	Bare      bool
	Inherited bool
}

// IsObject reports whether the property holds a nested node.
func (p *PropertyDescriptor) IsObject() bool {
	return p.ObjectType != nil
}

// Signal returns the notify signal name of prop, or "".
func (d *TypeDescriptor) Signal(prop *PropertyDescriptor) string {
	if prop.Notify < 0 || prop.Notify >= len(d.Signals) {
		return ""
	}
	return d.Signals[prop.Notify].Name
}

// BareSignals returns the signals that are not backing a property.
func (d *TypeDescriptor) BareSignals() []SignalDescriptor {
	var out []SignalDescriptor
	for _, s := range d.Signals {
		if s.Bare {
			out = append(out, s)
		}
	}
	return out
}

// ReflectIntrospector implements TypeIntrospector over struct tags.
type ReflectIntrospector struct {
	mu          sync.RWMutex
	descriptors map[reflect.Type]*TypeDescriptor
}

// NewReflectIntrospector creates a reflection based introspector.
func NewReflectIntrospector() *ReflectIntrospector {
	return &ReflectIntrospector{descriptors: make(map[reflect.Type]*TypeDescriptor)}
}

// IsObjectType reports whether t is a pointer to a struct implementing object.Object.
func IsObjectType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct && t.Implements(objectInterface)
}

// Describe implements TypeIntrospector.
func (ri *ReflectIntrospector) Describe(t reflect.Type) (*TypeDescriptor, error) {
	if !IsObjectType(t) {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, t)
	}

	ri.mu.RLock()
	desc, ok := ri.descriptors[t]
	ri.mu.RUnlock()
	if ok {
		return desc, nil
	}

	desc, err := describe(t)
	if err != nil {
		return nil, err
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()
	if existing, ok := ri.descriptors[t]; ok {
		return existing, nil
	}
	ri.descriptors[t] = desc
	return desc, nil
}

type tagSpec struct {
	name   string
	notify string
	skip   bool
	ro     bool
}

func parseTag(tag string) tagSpec {
	if tag == "-" {
		return tagSpec{skip: true}
	}
	parts := strings.Split(tag, ",")
	spec := tagSpec{name: strings.TrimSpace(parts[0])}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "notify="):
			spec.notify = strings.TrimPrefix(part, "notify=")
		case part == "readonly":
			spec.ro = true
		}
	}
	return spec
}

// taggedField is one tagged field found while walking a struct and its
// embedded structs.
type taggedField struct {
	field reflect.StructField
	index []int
	spec  tagSpec
}

// collectFields walks st depth first in declaration order, descending into
// untagged embedded structs. Blank fields are kept so bare signals can be
// declared more than once per struct.
func collectFields(st reflect.Type, index []int, visiting map[reflect.Type]bool, out *[]taggedField) {
	if visiting[st] {
		return
	}
	visiting[st] = true
	defer delete(visiting, st)

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		idx := append(append([]int(nil), index...), i)
		tag, tagged := f.Tag.Lookup(tagName)
		if !tagged {
			if f.Anonymous {
				ft := f.Type
				if ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					collectFields(ft, idx, visiting, out)
				}
			}
			continue
		}
		spec := parseTag(tag)
		if spec.skip || spec.name == "" {
			continue
		}
		*out = append(*out, taggedField{field: f, index: idx, spec: spec})
	}
}

// shadow drops fields hidden by a shallower field of the same name.
func shadow(fields []taggedField, desc string) ([]taggedField, error) {
	depth := make(map[string]int)
	for _, f := range fields {
		if d, ok := depth[f.spec.name]; !ok || len(f.index) < d {
			depth[f.spec.name] = len(f.index)
		}
	}
	seen := make(map[string]bool)
	out := fields[:0:0]
	for _, f := range fields {
		if len(f.index) != depth[f.spec.name] {
			continue
		}
		if seen[f.spec.name] {
			return nil, fmt.Errorf("%s.%s declared twice", desc, f.spec.name)
		}
		seen[f.spec.name] = true
		out = append(out, f)
	}
	return out, nil
}

func describe(t reflect.Type) (*TypeDescriptor, error) {
	st := t.Elem()
	desc := &TypeDescriptor{Type: t, Name: st.Name()}
	signalIndex := make(map[string]int)

	addSignal := func(name string, bare, inherited bool) int {
		if idx, ok := signalIndex[name]; ok {
			return idx
		}
		idx := len(desc.Signals)
		desc.Signals = append(desc.Signals, SignalDescriptor{Index: idx, Name: name, Bare: bare, Inherited: inherited})
		signalIndex[name] = idx
		return idx
	}

	var all []taggedField
	collectFields(st, nil, make(map[reflect.Type]bool), &all)

	var propFields, signalFields []taggedField
	for _, f := range all {
		if f.field.Type == signalType {
			signalFields = append(signalFields, f)
		} else {
			propFields = append(propFields, f)
		}
	}
	propFields, err := shadow(propFields, "property "+desc.Name)
	if err != nil {
		return nil, err
	}
	signalFields, err = shadow(signalFields, "signal "+desc.Name)
	if err != nil {
		return nil, err
	}

	for _, tf := range propFields {
		f, spec := tf.field, tf.spec
		if !f.IsExported() {
			return nil, fmt.Errorf("property %s.%s: field %s is not exported", desc.Name, spec.name, f.Name)
		}
		inherited := len(tf.index) > 1
		prop := &PropertyDescriptor{
			Index:     len(desc.Properties),
			Name:      spec.name,
			Type:      f.Type,
			Readable:  true,
			Writable:  !spec.ro,
			Notify:    -1,
			Inherited: inherited,
			field:     tf.index,
		}
		if IsObjectType(f.Type) {
			prop.ObjectType = f.Type
		}
		if isEnumType(f.Type) {
			prop.Enum = true
		}
		if spec.notify != "" {
			prop.Notify = addSignal(spec.notify, false, inherited)
		}
		if m, ok := t.MethodByName("Set" + f.Name); ok && m.Type.NumIn() == 2 && f.Type.AssignableTo(m.Type.In(1)) {
			prop.setter = m.Name
		}
		desc.Properties = append(desc.Properties, prop)
	}

	for _, tf := range signalFields {
		if _, dup := signalIndex[tf.spec.name]; dup {
			return nil, fmt.Errorf("signal %s.%s is already a notify signal", desc.Name, tf.spec.name)
		}
		addSignal(tf.spec.name, true, len(tf.index) > 1)
	}
	return desc, nil
}

func isEnumType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return t.PkgPath() != "" && t.Implements(stringerType)
	}
	return false
}

// Read implements TypeIntrospector.
func (ri *ReflectIntrospector) Read(obj object.Object, prop *PropertyDescriptor) (any, error) {
	if object.IsNil(obj) {
		return nil, fmt.Errorf("read %s: nil object", prop.Name)
	}
	v, err := fieldByIndex(reflect.ValueOf(obj).Elem(), prop.field)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", prop.Name, err)
	}
	return v.Interface(), nil
}

// Write implements TypeIntrospector.
func (ri *ReflectIntrospector) Write(obj object.Object, prop *PropertyDescriptor, value any) error {
	if object.IsNil(obj) {
		return fmt.Errorf("write %s: nil object", prop.Name)
	}
	if !prop.Writable {
		return fmt.Errorf("write %s: property is read-only", prop.Name)
	}
	rv, err := convertValue(value, prop.Type)
	if err != nil {
		return fmt.Errorf("write %s: %w", prop.Name, err)
	}

	ov := reflect.ValueOf(obj)
	if prop.setter != "" {
		ov.MethodByName(prop.setter).Call([]reflect.Value{rv})
		return nil
	}

	field, err := fieldByIndex(ov.Elem(), prop.field)
	if err != nil {
		return fmt.Errorf("write %s: %w", prop.Name, err)
	}
	if valuesEqual(field, rv) {
		return nil
	}
	field.Set(rv)

	if prop.Notify >= 0 {
		desc, err := ri.Describe(ov.Type())
		if err != nil {
			return err
		}
		obj.ObjectBase().Emit(desc.Signals[prop.Notify].Name)
	}
	return nil
}

func fieldByIndex(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("nil embedded struct")
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

func valuesEqual(a, b reflect.Value) bool {
	if !a.Comparable() || !b.Comparable() {
		return false
	}
	return a.Equal(b)
}

// convertValue converts value to t. Numeric kinds convert between each other,
// string kinds convert to string kinds, everything else must be assignable.
func convertValue(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot assign nil to %v", t)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumericKind(v.Kind()) && isNumericKind(t.Kind()) {
		if err := checkNumeric(v, t); err != nil {
			return reflect.Value{}, err
		}
		return v.Convert(t), nil
	}
	if v.Kind() == reflect.String && t.Kind() == reflect.String {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %v", value, t)
}

// checkNumeric rejects conversions that would lose the value: fractional
// floats into integers, negatives into unsigned kinds and overflow.
func checkNumeric(v reflect.Value, t reflect.Type) error {
	target := reflect.Zero(t)
	fail := func() error {
		return fmt.Errorf("cannot represent %v as %v", v.Interface(), t)
	}
	switch {
	case isIntKind(v.Kind()):
		x := v.Int()
		switch {
		case isIntKind(t.Kind()):
			if target.OverflowInt(x) {
				return fail()
			}
		case isUintKind(t.Kind()):
			if x < 0 || target.OverflowUint(uint64(x)) {
				return fail()
			}
		}
	case isUintKind(v.Kind()):
		x := v.Uint()
		switch {
		case isIntKind(t.Kind()):
			if x > math.MaxInt64 || target.OverflowInt(int64(x)) {
				return fail()
			}
		case isUintKind(t.Kind()):
			if target.OverflowUint(x) {
				return fail()
			}
		}
	default:
		f := v.Float()
		switch {
		case isIntKind(t.Kind()):
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || target.OverflowInt(int64(f)) {
				return fail()
			}
		case isUintKind(t.Kind()):
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || target.OverflowUint(uint64(f)) {
				return fail()
			}
		default:
			if !math.IsInf(f, 0) && !math.IsNaN(f) && target.OverflowFloat(f) {
				return fail()
			}
		}
	}
	return nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
