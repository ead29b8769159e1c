package gen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emicklei/proto"
)

const (
	timestampType = "google.protobuf.Timestamp"
	durationType  = "google.protobuf.Duration"
)

// Parse reads the given .proto files and resolves the field types across
// all of them. Imports are not followed: every referenced message or enum
// must be declared in one of the files, except the well-known Timestamp
// and Duration.
func Parse(paths ...string) (*Schema, error) {
	c := newCollector()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open proto file: %w", err)
		}
		err = c.add(path, f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return c.resolve()
}

// ParseReader parses one proto definition read from r.
func ParseReader(filename string, r io.Reader) (*Schema, error) {
	c := newCollector()
	if err := c.add(filename, r); err != nil {
		return nil, err
	}
	return c.resolve()
}

// pendingField is a field whose type is resolved once every file is read.
type pendingField struct {
	msg      *Message
	scope    string
	name     string
	typ      string
	repeated bool
	mapKey   string
}

type collector struct {
	schema  *Schema
	types   map[string]any
	pending []pendingField
}

func newCollector() *collector {
	return &collector{schema: &Schema{}, types: make(map[string]any)}
}

func (c *collector) add(filename string, r io.Reader) error {
	parser := proto.NewParser(r)
	parser.Filename(filename)
	def, err := parser.Parse()
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	base := filepath.Base(filename)
	c.schema.Files = append(c.schema.Files, base)

	pkg := ""
	for _, each := range def.Elements {
		if p, ok := each.(*proto.Package); ok {
			pkg = p.Name
			if c.schema.Package == "" {
				c.schema.Package = pkg
			}
		}
	}

	for _, each := range def.Elements {
		switch v := each.(type) {
		case *proto.Message:
			if err := c.addMessage(base, pkg, nil, v); err != nil {
				return err
			}
		case *proto.Enum:
			if err := c.addEnum(base, pkg, nil, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func qualify(pkg string, path []string) string {
	name := strings.Join(path, ".")
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func (c *collector) declare(fullName string, v any) error {
	if _, dup := c.types[fullName]; dup {
		return fmt.Errorf("%s is declared twice", fullName)
	}
	c.types[fullName] = v
	return nil
}

func (c *collector) addMessage(file, pkg string, parent []string, m *proto.Message) error {
	if m.IsExtend {
		return nil
	}
	path := append(append([]string(nil), parent...), m.Name)
	msg := &Message{
		FullName: qualify(pkg, path),
		GoName:   goTypeName(path),
		File:     file,
		Comment:  commentLines(m.Comment),
	}
	if err := c.declare(msg.FullName, msg); err != nil {
		return err
	}
	c.schema.Messages = append(c.schema.Messages, msg)

	var walk func(elements []proto.Visitee) error
	walk = func(elements []proto.Visitee) error {
		for _, each := range elements {
			switch v := each.(type) {
			case *proto.NormalField:
				c.pending = append(c.pending, pendingField{msg: msg, scope: msg.FullName, name: v.Name, typ: v.Type, repeated: v.Repeated})
			case *proto.MapField:
				c.pending = append(c.pending, pendingField{msg: msg, scope: msg.FullName, name: v.Name, typ: v.Type, mapKey: v.KeyType})
			case *proto.Oneof:
				if err := walk(v.Elements); err != nil {
					return err
				}
			case *proto.OneOfField:
				c.pending = append(c.pending, pendingField{msg: msg, scope: msg.FullName, name: v.Name, typ: v.Type})
			case *proto.Message:
				if err := c.addMessage(file, pkg, path, v); err != nil {
					return err
				}
			case *proto.Enum:
				if err := c.addEnum(file, pkg, path, v); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(m.Elements)
}

func (c *collector) addEnum(file, pkg string, parent []string, e *proto.Enum) error {
	path := append(append([]string(nil), parent...), e.Name)
	enum := &Enum{
		FullName: qualify(pkg, path),
		GoName:   goTypeName(path),
		File:     file,
		Comment:  commentLines(e.Comment),
	}
	if err := c.declare(enum.FullName, enum); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, each := range e.Elements {
		v, ok := each.(*proto.EnumField)
		if !ok {
			continue
		}
		value := &EnumValue{Name: v.Name, GoName: enumValueName(enum.GoName, e.Name, v.Name), Number: v.Integer}
		if seen[value.GoName] {
			return fmt.Errorf("enum %s: value %s maps to %s twice", enum.FullName, v.Name, value.GoName)
		}
		seen[value.GoName] = true
		enum.Values = append(enum.Values, value)
	}
	if len(enum.Values) == 0 {
		return fmt.Errorf("enum %s has no values", enum.FullName)
	}
	c.schema.Enums = append(c.schema.Enums, enum)
	return nil
}

// lookup resolves a type reference the way protoc does: from the innermost
// scope outwards, or absolutely when it starts with a dot.
func (c *collector) lookup(scope, name string) (any, bool) {
	if strings.HasPrefix(name, ".") {
		v, ok := c.types[name[1:]]
		return v, ok
	}
	for {
		candidate := name
		if scope != "" {
			candidate = scope + "." + name
		}
		if v, ok := c.types[candidate]; ok {
			return v, true
		}
		if scope == "" {
			return nil, false
		}
		if i := strings.LastIndex(scope, "."); i >= 0 {
			scope = scope[:i]
		} else {
			scope = ""
		}
	}
}

func (c *collector) resolve() (*Schema, error) {
	names := make(map[*Message]map[string]string)
	for _, p := range c.pending {
		f := &Field{
			Name:     p.name,
			Role:     toRoleName(p.name),
			GoName:   toGoFieldName(p.name),
			Repeated: p.repeated,
		}
		if err := checkField(p.msg, f); err != nil {
			return nil, err
		}
		if names[p.msg] == nil {
			names[p.msg] = make(map[string]string)
		}
		for _, key := range []string{"go:" + f.GoName, "role:" + f.Role} {
			if other, dup := names[p.msg][key]; dup {
				return nil, fmt.Errorf("message %s: fields %s and %s collide", p.msg.FullName, other, f.Name)
			}
			names[p.msg][key] = f.Name
		}

		if p.mapKey != "" {
			key, ok := scalarTypes[p.mapKey]
			if !ok || p.mapKey == "double" || p.mapKey == "float" {
				return nil, fmt.Errorf("message %s: field %s: unsupported map key %s", p.msg.FullName, p.name, p.mapKey)
			}
			f.MapKey = key
		}
		if err := c.resolveType(p, f); err != nil {
			return nil, err
		}
		p.msg.Fields = append(p.msg.Fields, f)
	}
	c.pending = nil
	return c.schema, nil
}

func (c *collector) resolveType(p pendingField, f *Field) error {
	if goType, ok := scalarTypes[p.typ]; ok {
		f.Kind, f.Elem = ScalarField, goType
		return nil
	}
	switch strings.TrimPrefix(p.typ, ".") {
	case "bytes":
		f.Kind, f.Elem = BytesField, "[]byte"
		return nil
	case timestampType:
		f.Kind, f.Elem = TimestampField, "time.Time"
		return nil
	case durationType:
		f.Kind, f.Elem = DurationField, "time.Duration"
		return nil
	}

	v, ok := c.lookup(p.scope, p.typ)
	if !ok {
		return fmt.Errorf("message %s: field %s: unknown type %s", p.msg.FullName, p.name, p.typ)
	}
	switch t := v.(type) {
	case *Message:
		f.Kind, f.Elem, f.Message = MessageField, "*"+t.GoName, t
	case *Enum:
		f.Kind, f.Elem, f.Enum = EnumField, t.GoName, t
	}
	return nil
}

func commentLines(c *proto.Comment) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, line := range c.Lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
