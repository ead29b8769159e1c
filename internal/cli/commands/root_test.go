package commands

import (
	"bytes"
	"strings"
	"testing"
)

// runCommand executes omctl with args and returns everything it printed.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "omctl" {
		t.Errorf("expected Use to be 'omctl', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	// Check subcommands are registered
	expectedCommands := []string{
		"version",
		"catalog",
		"roles",
		"sort",
		"filter",
		"serve",
		"settings",
		"generate",
	}

	for _, expected := range expectedCommands {
		found := false
		for _, cmd := range cmd.Commands() {
			if cmd.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	for _, flag := range []string{"verbose", "no-color"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag to be registered", flag)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	// Set test version info
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.24"

	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	for _, want := range []string{
		"omctl version: 1.0.0-test",
		"Git commit: abc123",
		"Build date: 2025-01-01",
		"Go version: go1.24",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestNewLogger(t *testing.T) {
	verbose = false
	logger, err := newLogger()
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Error("expected the quiet logger to drop debug entries")
	}

	verbose = true
	defer func() { verbose = false }()
	logger, err = newLogger()
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Error("expected the verbose logger to keep debug entries")
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := runCommand(t, "bogus"); err == nil {
		t.Error("expected an error for an unknown command")
	}
}
