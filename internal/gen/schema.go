// Package gen turns protobuf message definitions into node types for the
// object model: structs embedding object.Base whose fields carry om tags and
// whose Set<Field> methods emit the notify signals.
package gen

import (
	"fmt"
	"strings"
	"unicode"
)

// FieldKind classifies the Go representation of a proto field.
type FieldKind int

const (
	ScalarField FieldKind = iota
	BytesField
	EnumField
	MessageField
	TimestampField
	DurationField
)

// Schema is the resolved content of a set of proto files.
type Schema struct {
	// Package is the proto package of the first file that declares one.
	Package  string
	Files    []string
	Messages []*Message
	Enums    []*Enum
}

// Message is one proto message, nested messages included.
type Message struct {
	// FullName is the dotted proto name, package included.
	FullName string
	GoName   string
	File     string
	Comment  []string
	Fields   []*Field
}

// Field is one message field.
type Field struct {
	Name    string
	Role    string
	GoName  string
	Kind    FieldKind
	Elem    string
	Message *Message
	Enum    *Enum
	// Repeated fields become slices, map fields maps keyed by MapKey.
	Repeated bool
	MapKey   string
}

// Enum is one proto enum.
type Enum struct {
	FullName string
	GoName   string
	File     string
	Comment  []string
	Values   []*EnumValue
}

// EnumValue is one enum constant.
type EnumValue struct {
	Name   string
	GoName string
	Number int
}

// GoType returns the Go type of the field.
func (f *Field) GoType() string {
	switch {
	case f.MapKey != "":
		return "map[" + f.MapKey + "]" + f.Elem
	case f.Repeated:
		return "[]" + f.Elem
	}
	return f.Elem
}

// Signal returns the notify signal name of the field.
func (f *Field) Signal() string {
	return f.Role + "Changed"
}

// Message returns the message with the given full name.
func (s *Schema) Message(fullName string) (*Message, bool) {
	for _, m := range s.Messages {
		if m.FullName == fullName {
			return m, true
		}
	}
	return nil, false
}

// PackageName returns a Go package name derived from the proto package,
// or "models" when there is none.
func (s *Schema) PackageName() string {
	name := s.Package
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		return "models"
	}
	return name
}

var scalarTypes = map[string]string{
	"double":   "float64",
	"float":    "float32",
	"int32":    "int32",
	"sint32":   "int32",
	"sfixed32": "int32",
	"int64":    "int64",
	"sint64":   "int64",
	"sfixed64": "int64",
	"uint32":   "uint32",
	"fixed32":  "uint32",
	"uint64":   "uint64",
	"fixed64":  "uint64",
	"bool":     "bool",
	"string":   "string",
}

// Common initialisms that should be all caps in Go
var initialisms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"uri":  "URI",
	"uuid": "UUID",
	"api":  "API",
	"http": "HTTP",
	"json": "JSON",
	"xml":  "XML",
	"html": "HTML",
	"sql":  "SQL",
	"ip":   "IP",
	"tcp":  "TCP",
	"udp":  "UDP",
}

// reservedNames are promoted from object.Base and cannot be field names.
var reservedNames = map[string]bool{
	"Base":          true,
	"ObjectBase":    true,
	"ObjectName":    true,
	"GetObjectName": true,
	"SetObjectName": true,
	"Connect":       true,
	"OnDestroyed":   true,
	"Emit":          true,
	"Receivers":     true,
	"Destroy":       true,
	"IsDestroyed":   true,
	"EmitChanged":   true,
}

// reservedRoles collide with roles every node already has.
var reservedRoles = map[string]bool{
	"objectName": true,
	"changed":    true,
	"destroyed":  true,
	"item":       true,
}

// toGoFieldName converts a snake_case field name to PascalCase
func toGoFieldName(name string) string {
	parts := strings.Split(name, "_")
	for i, part := range parts {
		if len(part) > 0 {
			if upper, ok := initialisms[strings.ToLower(part)]; ok {
				parts[i] = upper
			} else {
				parts[i] = strings.ToUpper(part[0:1]) + part[1:]
			}
		}
	}
	return strings.Join(parts, "")
}

// toRoleName converts a snake_case field name to the camelCase role name.
func toRoleName(name string) string {
	var b strings.Builder
	upper := false
	for i, r := range name {
		switch {
		case r == '_':
			upper = b.Len() > 0
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		case i == 0:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// toUpperSnake converts a CamelCase enum name to UPPER_SNAKE.
func toUpperSnake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// enumValueName converts SEVERITY_LOW of enum Severity to SeverityLow.
func enumValueName(goName, protoName, value string) string {
	trimmed := strings.TrimPrefix(value, toUpperSnake(protoName)+"_")
	if trimmed == "" {
		trimmed = value
	}
	var b strings.Builder
	b.WriteString(goName)
	for _, part := range strings.Split(trimmed, "_") {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		b.WriteString(strings.ToUpper(lower[:1]) + lower[1:])
	}
	return b.String()
}

// goTypeName joins nested proto names the way protoc-gen-go does.
func goTypeName(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "_")
}

func checkField(msg *Message, f *Field) error {
	if reservedNames[f.GoName] || reservedNames["Set"+f.GoName] {
		return fmt.Errorf("message %s: field %s collides with object.Base", msg.FullName, f.Name)
	}
	if reservedRoles[f.Role] {
		return fmt.Errorf("message %s: field %s collides with the %s role", msg.FullName, f.Name, f.Role)
	}
	return nil
}
