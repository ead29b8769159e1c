package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
	}{
		{
			name: "with context",
			opts: ErrorOptions{
				Context:      "role not found",
				Problem:      "Cannot find role 'nmae'.",
				Suggestions:  []string{"name"},
				HelpCommands: []string{"See all roles: omctl catalog Item"},
				NoColor:      true,
			},
			contains: []string{
				"❌ ROLE NOT FOUND: Cannot find role 'nmae'.",
				"Did you mean: name?",
				"→ See all roles: omctl catalog Item",
			},
		},
		{
			name:     "warning without context",
			opts:     ErrorOptions{Level: ErrorLevelWarning, Problem: "stale", NoColor: true},
			contains: []string{"⚠️ stale"},
		},
		{
			name:     "info",
			opts:     ErrorOptions{Level: ErrorLevelInfo, Problem: "note", NoColor: true},
			contains: []string{"ℹ️ note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatError(tt.opts)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}

func TestFormatErrorWithoutSuggestions(t *testing.T) {
	out := FormatError(ErrorOptions{Problem: "boom", NoColor: true})
	if strings.Contains(out, "Did you mean") {
		t.Errorf("expected no suggestion line, got:\n%s", out)
	}
}

func TestDomainErrors(t *testing.T) {
	out := RoleNotFoundError("Item", "nmae", []string{"name"}, true)
	if !strings.Contains(out, "Cannot find role 'nmae' on Item.") || !strings.Contains(out, "omctl catalog Item") {
		t.Errorf("unexpected role error:\n%s", out)
	}

	out = TypeNotFoundError("Itme", []string{"Item"}, true)
	if !strings.Contains(out, "TYPE NOT FOUND") || !strings.Contains(out, "Did you mean: Item?") {
		t.Errorf("unexpected type error:\n%s", out)
	}

	out = SettingNotFoundError("item/name", nil, true)
	if !strings.Contains(out, "No value stored for 'item/name'.") {
		t.Errorf("unexpected setting error:\n%s", out)
	}
}

func TestWriteErrorAndSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Problem: "failed", NoColor: true})
	WriteSuccess(&buf, "saved", true)
	if !strings.Contains(buf.String(), "❌ failed") || !strings.Contains(buf.String(), "✓ saved") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if !strings.Contains(Warning("careful", true), "⚠️ careful") {
		t.Error("expected warning symbol")
	}
}
