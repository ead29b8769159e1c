package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "ID", "ROLE", "INHERITED")
	table.AddRow(2, "id", true)
	table.AddRow(3, "name", false)
	table.AddRow(10, "coord.type.type", false)
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "ID  ROLE             INHERITED" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "──  ───────────────  ─────────" {
		t.Errorf("unexpected separator %q", lines[1])
	}
	if lines[2] != "2   id               true" {
		t.Errorf("unexpected row %q", lines[2])
	}
	if lines[4] != "10  coord.type.type  false" {
		t.Errorf("unexpected row %q", lines[4])
	}
	if table.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", table.Len())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	if buf.Len() != 0 {
		t.Errorf("expected no output without headers, got %q", buf.String())
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("name", "0")
	table.AddRow("coord.x", 1.5)
	table.Render()

	want := "name:    0\ncoord.x: 1.5\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"ab", 4, "ab  "},
		{"abcd", 2, "abcd"},
		{"─", 3, "─  "},
	}
	for _, tt := range tests {
		if got := padRight(tt.in, tt.width); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
