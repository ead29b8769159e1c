package sample

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItems(t *testing.T) {
	items := Items(5)
	require.Len(t, items, 5)

	tests := []struct {
		id   int
		name string
		x    float64
		kind Kind
	}{
		{0, "4", 0, Kind3},
		{1, "3", 0, Kind2},
		{2, "2", 1, Kind1},
		{3, "1", 1, Kind0},
		{4, "0", 2, Kind0},
	}
	for i, tt := range tests {
		item := items[i]
		assert.Equal(t, tt.id, item.ID)
		assert.Equal(t, tt.name, item.Name)
		assert.Equal(t, tt.x, item.Coord.X)
		assert.Equal(t, tt.kind, item.Coord.Type.Type)
		assert.Equal(t, fmt.Sprintf("objectName%d", i), item.GetObjectName())
	}
	assert.InDelta(t, 1.0, items[1].Coord.Y, 1e-6)
	assert.InDelta(t, -1.0, items[3].Coord.Y, 1e-6)
}

func TestSetters(t *testing.T) {
	item := NewItem(1, "a")
	var fired []string
	for _, signal := range []string{"idChanged", "nameChanged", "coordChanged", "changed"} {
		signal := signal
		item.Connect(signal, func() { fired = append(fired, signal) })
	}

	item.SetID(1)
	item.SetName("a")
	assert.Empty(t, fired)

	item.SetID(2)
	item.SetName("b")
	item.SetCoord(NewCoord(1, 2))
	item.EmitChanged()
	assert.Equal(t, []string{"idChanged", "nameChanged", "coordChanged", "changed"}, fired)
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{"Coord", "CoordType", "Item", "Record"}, TypeNames())
	typ, ok := Type("Item")
	require.True(t, ok)
	assert.Equal(t, "Item", typ.Elem().Name())
	_, ok = Type("Missing")
	assert.False(t, ok)

	objects := Objects(Items(2))
	assert.Len(t, objects, 2)
}
