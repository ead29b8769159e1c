package gen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const markersProto = `syntax = "proto3";
package demo.shapes;

import "google/protobuf/timestamp.proto";

// Severity of a marker.
enum Severity {
  SEVERITY_UNSPECIFIED = 0;
  SEVERITY_LOW = 1;
  SEVERITY_HIGH = 2;
}

// Marker is a point of interest.
message Marker {
  int64 marker_id = 1;
  string display_name = 2;
  Point position = 3;
  repeated string tags = 4;
  map<string, double> weights = 5;
  Severity severity = 6;
  google.protobuf.Timestamp created_at = 7;
  bytes payload = 8;
  Kind kind = 9;
  oneof label {
    string text = 10;
    uint32 code = 11;
  }
  repeated Marker children = 12;

  enum Kind {
    KIND_NONE = 0;
    KIND_PIN = 1;
  }
}

message Point {
  double x = 1;
  float y = 2;
}
`

func parseString(t *testing.T, src string) *Schema {
	t.Helper()
	schema, err := ParseReader("markers.proto", strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	return schema
}

func TestParse_Messages(t *testing.T) {
	schema := parseString(t, markersProto)

	if schema.Package != "demo.shapes" {
		t.Errorf("expected package demo.shapes, got %s", schema.Package)
	}
	if got := schema.PackageName(); got != "shapes" {
		t.Errorf("expected Go package shapes, got %s", got)
	}
	if len(schema.Files) != 1 || schema.Files[0] != "markers.proto" {
		t.Errorf("unexpected files %v", schema.Files)
	}
	if len(schema.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(schema.Messages))
	}

	marker, ok := schema.Message("demo.shapes.Marker")
	if !ok {
		t.Fatal("Marker not found")
	}
	if len(marker.Comment) != 1 || marker.Comment[0] != "Marker is a point of interest." {
		t.Errorf("unexpected comment %q", marker.Comment)
	}

	tests := []struct {
		name   string
		goName string
		role   string
		kind   FieldKind
		goType string
	}{
		{"marker_id", "MarkerID", "markerId", ScalarField, "int64"},
		{"display_name", "DisplayName", "displayName", ScalarField, "string"},
		{"position", "Position", "position", MessageField, "*Point"},
		{"tags", "Tags", "tags", ScalarField, "[]string"},
		{"weights", "Weights", "weights", ScalarField, "map[string]float64"},
		{"severity", "Severity", "severity", EnumField, "Severity"},
		{"created_at", "CreatedAt", "createdAt", TimestampField, "time.Time"},
		{"payload", "Payload", "payload", BytesField, "[]byte"},
		{"kind", "Kind", "kind", EnumField, "Marker_Kind"},
		{"text", "Text", "text", ScalarField, "string"},
		{"code", "Code", "code", ScalarField, "uint32"},
		{"children", "Children", "children", MessageField, "[]*Marker"},
	}
	if len(marker.Fields) != len(tests) {
		t.Fatalf("expected %d fields, got %d", len(tests), len(marker.Fields))
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := marker.Fields[i]
			if f.Name != tt.name || f.GoName != tt.goName || f.Role != tt.role {
				t.Errorf("got name %s go %s role %s", f.Name, f.GoName, f.Role)
			}
			if f.Kind != tt.kind {
				t.Errorf("expected kind %d, got %d", tt.kind, f.Kind)
			}
			if got := f.GoType(); got != tt.goType {
				t.Errorf("expected type %s, got %s", tt.goType, got)
			}
			if got := f.Signal(); got != tt.role+"Changed" {
				t.Errorf("unexpected signal %s", got)
			}
		})
	}

	point, _ := schema.Message("demo.shapes.Point")
	if marker.Fields[2].Message != point {
		t.Error("position should resolve to Point")
	}
}

func TestParse_Enums(t *testing.T) {
	schema := parseString(t, markersProto)

	if len(schema.Enums) != 2 {
		t.Fatalf("expected 2 enums, got %d", len(schema.Enums))
	}
	severity, kind := schema.Enums[0], schema.Enums[1]
	if severity.GoName != "Severity" || kind.GoName != "Marker_Kind" {
		t.Errorf("unexpected enum names %s %s", severity.GoName, kind.GoName)
	}
	if kind.FullName != "demo.shapes.Marker.Kind" {
		t.Errorf("unexpected full name %s", kind.FullName)
	}

	var names []string
	for _, v := range severity.Values {
		names = append(names, v.GoName)
	}
	if got := strings.Join(names, " "); got != "SeverityUnspecified SeverityLow SeverityHigh" {
		t.Errorf("unexpected value names %s", got)
	}
	if severity.Values[2].Number != 2 || severity.Values[2].Name != "SEVERITY_HIGH" {
		t.Errorf("unexpected value %+v", severity.Values[2])
	}
	if kind.Values[1].GoName != "Marker_KindPin" {
		t.Errorf("unexpected nested value name %s", kind.Values[1].GoName)
	}
}

func TestParse_AcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.proto")
	b := filepath.Join(dir, "b.proto")
	if err := os.WriteFile(a, []byte("syntax = \"proto3\";\npackage demo;\nmessage Line { Point from = 1; Point to = 2; }\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("syntax = \"proto3\";\npackage demo;\nmessage Point { double x = 1; }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	schema, err := Parse(a, b)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if strings.Join(schema.Files, ",") != "a.proto,b.proto" {
		t.Errorf("unexpected files %v", schema.Files)
	}
	line, _ := schema.Message("demo.Line")
	if line.Fields[0].GoType() != "*Point" {
		t.Errorf("expected *Point, got %s", line.Fields[0].GoType())
	}
}

func TestParse_AbsoluteAndOuterScope(t *testing.T) {
	schema := parseString(t, `syntax = "proto3";
package demo;
message Outer {
  message Inner { int32 v = 1; }
  message Other {
    Inner a = 1;
    .demo.Outer.Inner b = 2;
  }
}
`)
	other, ok := schema.Message("demo.Outer.Other")
	if !ok {
		t.Fatal("Outer.Other not found")
	}
	for _, f := range other.Fields {
		if f.GoType() != "*Outer_Inner" {
			t.Errorf("field %s: expected *Outer_Inner, got %s", f.Name, f.GoType())
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "message {", "failed to parse"},
		{"unknown type", "message A { Missing m = 1; }", "unknown type Missing"},
		{"duplicate message", "message A {} message A {}", "A is declared twice"},
		{"reserved go name", "message A { string object_name = 1; }", "collides with object.Base"},
		{"reserved setter", "message A { string emit_changed = 1; }", "collides with object.Base"},
		{"reserved role", "message A { string changed = 1; }", "collides with the changed role"},
		{"colliding fields", "message A { string foo_bar = 1; string fooBar = 2; }", "fields foo_bar and fooBar collide"},
		{"float map key", "message A { map<double, string> m = 1; }", "unsupported map key double"},
		{"empty enum", "enum E {}", "enum E has no values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReader("bad.proto", strings.NewReader(tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		in, goName, role string
	}{
		{"name", "Name", "name"},
		{"user_id", "UserID", "userId"},
		{"api_url", "APIURL", "apiUrl"},
		{"display_name_2", "DisplayName2", "displayName2"},
		{"Coord", "Coord", "coord"},
	}
	for _, tt := range tests {
		if got := toGoFieldName(tt.in); got != tt.goName {
			t.Errorf("toGoFieldName(%q) = %q, want %q", tt.in, got, tt.goName)
		}
		if got := toRoleName(tt.in); got != tt.role {
			t.Errorf("toRoleName(%q) = %q, want %q", tt.in, got, tt.role)
		}
	}

	if got := toUpperSnake("HTTPStatus"); got != "HTTP_STATUS" {
		t.Errorf("toUpperSnake = %q", got)
	}
	if got := enumValueName("Status", "Status", "OTHER_VALUE"); got != "StatusOtherValue" {
		t.Errorf("enumValueName = %q", got)
	}
	if got := enumValueName("Status", "Status", "STATUS_"); got != "StatusStatus" {
		t.Errorf("enumValueName = %q", got)
	}
}
