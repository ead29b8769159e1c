package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsProto = `syntax = "proto3";
package demo.items;

message Item {
  int32 id = 1;
  string name = 2;
}
`

func TestGenerateCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("items.proto", []byte(itemsProto), 0644))

	out, err := runCommand(t, "generate", "items.proto")
	require.NoError(t, err)
	assert.Contains(t, out, "// Code generated by omgen from items.proto. DO NOT EDIT.")
	assert.Contains(t, out, "package items")
	assert.Contains(t, out, "func (m *Item) SetName(v string) {")

	out, err = runCommand(t, "gen", "-o", "models/items_om.go", "-p", "models", "items.proto")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Generated 1 node types and 0 enums into models/items_om.go")

	src, err := os.ReadFile(filepath.Join("models", "items_om.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "package models")
	assert.Contains(t, string(src), "`om:\"id,notify=idChanged\"`")
}

func TestGenerateCommand_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := runCommand(t, "generate")
	assert.Error(t, err)

	_, err = runCommand(t, "generate", "missing.proto")
	assert.ErrorContains(t, err, "failed to open proto file")

	require.NoError(t, os.WriteFile("bad.proto", []byte("message Item { Unknown x = 1; }"), 0644))
	_, err = runCommand(t, "generate", "bad.proto")
	assert.ErrorContains(t, err, "unknown type Unknown")
}
