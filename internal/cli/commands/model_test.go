package commands

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectmodel/runtime/metadata"
)

// sources returns the SOURCE column of a printed row table.
func sources(t *testing.T, out string) []string {
	t.Helper()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2, out)
	require.True(t, strings.HasPrefix(lines[0], "ROW"), out)
	var src []string
	for _, line := range lines[2:] {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 2, line)
		src = append(src, fields[1])
	}
	return src
}

func requireFormatted(t *testing.T, err error, contains ...string) {
	t.Helper()
	require.Error(t, err)
	var formatted *formattedError
	require.True(t, errors.As(err, &formatted), "expected a formatted error, got %v", err)
	for _, want := range contains {
		assert.Contains(t, formatted.message, want)
	}
}

func TestCatalogCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runCommand(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "Item (13 roles)")
	assert.Contains(t, out, "coord.type.type")
	assert.Contains(t, out, "nameChanged")

	out, err = runCommand(t, "catalog", "Coord")
	require.NoError(t, err)
	assert.Contains(t, out, "Coord (")
	assert.NotContains(t, out, "coord.x")

	_, err = runCommand(t, "catalog", "Itme")
	requireFormatted(t, err, "TYPE NOT FOUND", "Did you mean: Item?")
}

func TestRolesCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runCommand(t, "roles", "coord*")
	require.NoError(t, err)
	for _, want := range []string{"coord.x", "coord.y", "coord.type.type", "coordTypeType"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "name")

	out, err = runCommand(t, "roles", "name, id")
	require.NoError(t, err)
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "id")

	_, err = runCommand(t, "roles", "nmae")
	requireFormatted(t, err, "ROLE NOT FOUND", "Did you mean: name")
	assert.True(t, metadata.IsRoleNotFound(err))

	_, err = runCommand(t, "roles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role spec required")

	_, err = runCommand(t, "roles", "*/bogus")
	require.ErrorIs(t, err, metadata.ErrInvalidRoleSpec)
}

func TestRolesCommandInteractive(t *testing.T) {
	t.Chdir(t.TempDir())

	original := askRoleSpec
	defer func() { askRoleSpec = original }()
	var asked string
	askRoleSpec = func(catalog *metadata.RoleCatalog) (string, error) {
		asked = catalog.TypeName()
		return "x", nil
	}

	out, err := runCommand(t, "roles", "--type", "Coord", "--interactive")
	require.NoError(t, err)
	assert.Equal(t, "Coord", asked)
	assert.Contains(t, out, "value")
}

func TestSortCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runCommand(t, "sort", "name", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1", "0"}, sources(t, out))

	out, err = runCommand(t, "sort", "name", "-n", "3", "--desc")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, sources(t, out))

	// coord.x is 0 0 1 1, name breaks the ties
	out, err = runCommand(t, "sort", "coord.x", "name", "-n", "4")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "0", "3", "2"}, sources(t, out))

	_, err = runCommand(t, "sort", "nmae")
	requireFormatted(t, err, "Did you mean: name")

	_, err = runCommand(t, "sort")
	require.Error(t, err)
}

func TestFilterCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runCommand(t, "filter", "id", ">=", "1", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, sources(t, out))

	out, err = runCommand(t, "filter", "id", ">=", "1", "-n", "3", "--sort", "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, sources(t, out))

	out, err = runCommand(t, "filter", "id", ">=", "1", "-n", "3", "--invert")
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, sources(t, out))

	out, err = runCommand(t, "filter", "id", "in", "0,2", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2"}, sources(t, out))

	out, err = runCommand(t, "filter", "id", ">", "9", "-n", "3")
	require.NoError(t, err)
	assert.Empty(t, sources(t, out))

	_, err = runCommand(t, "filter", "nmae", "==", "1")
	requireFormatted(t, err, "Did you mean: name")

	_, err = runCommand(t, "filter", "id", "~~", "1")
	require.Error(t, err)
}

func TestModelConfigIsApplied(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("objectmodel.yml", []byte("model:\n  item_data_changed_delay: nope\n"), 0644))

	_, err := runCommand(t, "sort", "name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item_data_changed_delay")
}
