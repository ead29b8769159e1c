package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"
)

const objectImport = "github.com/conduit-lang/objectmodel/runtime/object"

// Generator writes node types for a Schema.
type Generator struct {
	buf     *bytes.Buffer
	indent  int
	imports map[string]bool
	pkg     string
}

// NewGenerator creates a generator writing Go package pkg.
func NewGenerator(pkg string) *Generator {
	return &Generator{
		buf:     &bytes.Buffer{},
		imports: make(map[string]bool),
		pkg:     pkg,
	}
}

// Generate returns the gofmt-ed source for every enum and message of schema.
func (g *Generator) Generate(schema *Schema) ([]byte, error) {
	g.reset()
	pkg := g.pkg
	if pkg == "" {
		pkg = schema.PackageName()
	}
	if len(schema.Messages) == 0 && len(schema.Enums) == 0 {
		return nil, fmt.Errorf("codegen: no messages or enums in %s", strings.Join(schema.Files, ", "))
	}

	g.writeLine("// Code generated by omgen from %s. DO NOT EDIT.", strings.Join(schema.Files, ", "))
	g.writeLine("")
	g.writeLine("package %s", pkg)
	g.writeLine("")

	g.collectImports(schema)
	g.writeImports()

	for _, enum := range schema.Enums {
		g.writeLine("")
		g.generateEnum(enum)
	}
	for _, msg := range schema.Messages {
		g.writeLine("")
		g.generateMessage(msg, preallocated(msg))
	}

	src, err := format.Source(g.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("codegen: format generated code: %w", err)
	}
	return src, nil
}

func (g *Generator) reset() {
	g.buf.Reset()
	g.indent = 0
	g.imports = make(map[string]bool)
}

// writeLine writes a formatted line with proper indentation
func (g *Generator) writeLine(format string, args ...any) {
	if format == "" {
		g.buf.WriteString("\n")
		return
	}
	for i := 0; i < g.indent; i++ {
		g.buf.WriteString("\t")
	}
	if len(args) > 0 {
		fmt.Fprintf(g.buf, format, args...)
	} else {
		g.buf.WriteString(format)
	}
	g.buf.WriteString("\n")
}

func (g *Generator) collectImports(schema *Schema) {
	if len(schema.Messages) > 0 {
		g.imports[objectImport] = true
	}
	if len(schema.Enums) > 0 {
		g.imports["fmt"] = true
	}
	for _, msg := range schema.Messages {
		for _, f := range msg.Fields {
			switch f.Kind {
			case TimestampField, DurationField:
				g.imports["time"] = true
			case BytesField:
				g.imports["bytes"] = true
			}
			switch {
			case f.MapKey != "":
				g.imports["maps"] = true
			case f.Repeated:
				g.imports["slices"] = true
			}
		}
	}
}

// writeImports writes the import block, stdlib first.
func (g *Generator) writeImports() {
	var stdlibImports, externalImports []string
	for imp := range g.imports {
		if strings.Contains(imp, ".") {
			externalImports = append(externalImports, imp)
		} else {
			stdlibImports = append(stdlibImports, imp)
		}
	}
	sort.Strings(stdlibImports)
	sort.Strings(externalImports)

	g.writeLine("import (")
	g.indent++
	for _, imp := range stdlibImports {
		g.writeLine("%q", imp)
	}
	if len(stdlibImports) > 0 && len(externalImports) > 0 {
		g.writeLine("")
	}
	for _, imp := range externalImports {
		g.writeLine("%q", imp)
	}
	g.indent--
	g.writeLine(")")
}

func (g *Generator) writeComment(lines []string, fallback string) {
	if len(lines) == 0 {
		g.writeLine("// %s", fallback)
		return
	}
	for _, line := range lines {
		g.writeLine("// %s", line)
	}
}

func (g *Generator) generateEnum(enum *Enum) {
	g.writeComment(enum.Comment, fmt.Sprintf("%s is generated from enum %s.", enum.GoName, enum.FullName))
	g.writeLine("type %s int32", enum.GoName)
	g.writeLine("")
	g.writeLine("const (")
	g.indent++
	for _, v := range enum.Values {
		g.writeLine("%s %s = %d", v.GoName, enum.GoName, v.Number)
	}
	g.indent--
	g.writeLine(")")
	g.writeLine("")

	// Aliases share a number; the first name wins.
	g.writeLine("func (x %s) String() string {", enum.GoName)
	g.indent++
	g.writeLine("switch x {")
	seen := make(map[int]bool)
	for _, v := range enum.Values {
		if seen[v.Number] {
			continue
		}
		seen[v.Number] = true
		g.writeLine("case %s:", v.GoName)
		g.indent++
		g.writeLine("return %q", v.Name)
		g.indent--
	}
	g.writeLine("}")
	g.writeLine("return fmt.Sprintf(\"%s(%%d)\", int32(x))", enum.GoName)
	g.indent--
	g.writeLine("}")
}

func (g *Generator) generateMessage(msg *Message, prealloc []*Field) {
	g.writeComment(msg.Comment, fmt.Sprintf("%s is generated from message %s.", msg.GoName, msg.FullName))
	g.writeLine("type %s struct {", msg.GoName)
	g.indent++
	g.writeLine("object.Base")
	for _, f := range msg.Fields {
		g.writeLine("%s %s `om:\"%s,notify=%s\"`", f.GoName, f.GoType(), f.Role, f.Signal())
	}
	g.writeLine("_ object.Signal `om:\"changed\"`")
	g.indent--
	g.writeLine("}")
	g.writeLine("")

	g.writeLine("// New%s creates a %s.", msg.GoName, msg.GoName)
	g.writeLine("func New%s() *%s {", msg.GoName, msg.GoName)
	g.indent++
	if len(prealloc) == 0 {
		g.writeLine("return &%s{}", msg.GoName)
	} else {
		g.writeLine("return &%s{", msg.GoName)
		g.indent++
		for _, f := range prealloc {
			g.writeLine("%s: New%s(),", f.GoName, f.Message.GoName)
		}
		g.indent--
		g.writeLine("}")
	}
	g.indent--
	g.writeLine("}")

	for _, f := range msg.Fields {
		g.writeLine("")
		g.generateSetter(msg, f)
	}

	g.writeLine("")
	g.writeLine("// EmitChanged fires the changed signal.")
	g.writeLine("func (m *%s) EmitChanged() {", msg.GoName)
	g.indent++
	g.writeLine("m.Emit(\"changed\")")
	g.indent--
	g.writeLine("}")
}

func (g *Generator) generateSetter(msg *Message, f *Field) {
	g.writeLine("// Set%s sets %s.", f.GoName, f.Role)
	g.writeLine("func (m *%s) Set%s(v %s) {", msg.GoName, f.GoName, f.GoType())
	g.indent++
	g.writeLine("if %s {", equalExpr(f, "m."+f.GoName, "v"))
	g.indent++
	g.writeLine("return")
	g.indent--
	g.writeLine("}")
	g.writeLine("m.%s = v", f.GoName)
	g.writeLine("m.Emit(%q)", f.Signal())
	g.writeLine("m.Emit(\"changed\")")
	g.indent--
	g.writeLine("}")
}

// equalExpr returns a Go expression comparing a and b of the field's type.
func equalExpr(f *Field, a, b string) string {
	var elemEqual string
	switch f.Kind {
	case BytesField:
		elemEqual = "bytes.Equal"
	case TimestampField:
		elemEqual = "time.Time.Equal"
	}

	switch {
	case f.MapKey != "" && elemEqual != "":
		return fmt.Sprintf("maps.EqualFunc(%s, %s, %s)", a, b, elemEqual)
	case f.MapKey != "":
		return fmt.Sprintf("maps.Equal(%s, %s)", a, b)
	case f.Repeated && elemEqual != "":
		return fmt.Sprintf("slices.EqualFunc(%s, %s, %s)", a, b, elemEqual)
	case f.Repeated:
		return fmt.Sprintf("slices.Equal(%s, %s)", a, b)
	case elemEqual == "bytes.Equal":
		return fmt.Sprintf("bytes.Equal(%s, %s)", a, b)
	case elemEqual != "":
		return fmt.Sprintf("%s.Equal(%s)", a, b)
	}
	return fmt.Sprintf("%s == %s", a, b)
}

// preallocated returns the singular message fields New<Message> creates.
// Fields whose type leads back to msg stay nil.
func preallocated(msg *Message) []*Field {
	var out []*Field
	for _, f := range msg.Fields {
		if f.Kind != MessageField || f.Repeated || f.MapKey != "" {
			continue
		}
		if !reaches(f.Message, msg, map[*Message]bool{}) {
			out = append(out, f)
		}
	}
	return out
}

// reaches reports whether from leads to target through singular message fields.
func reaches(from, target *Message, visited map[*Message]bool) bool {
	if from == target {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	for _, f := range from.Fields {
		if f.Kind == MessageField && !f.Repeated && f.MapKey == "" && reaches(f.Message, target, visited) {
			return true
		}
	}
	return false
}
