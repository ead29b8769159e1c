package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectmodel/internal/sample"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

type recorder struct {
	changes []metadata.RoleSet
	owners  []object.Object
}

func (r *recorder) record(owner object.Object, changed metadata.RoleSet) {
	r.owners = append(r.owners, owner)
	r.changes = append(r.changes, changed)
}

func roleSet(c *metadata.RoleCatalog, names ...string) metadata.RoleSet {
	var ids metadata.RoleSet
	for _, name := range names {
		ids = ids.Insert(c.MustRoleID(name))
	}
	return ids
}

func TestEngine_ResubscribesOnPointerSwap(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "coord.type.type"))

	item := nestedItem()
	old := item.Coord
	oldType := old.Type
	require.True(t, e.Attach(item))

	fresh := sample.NewCoord(1, 1)
	fresh.SetType(sample.NewCoordType(sample.Kind1))
	item.SetCoord(fresh)
	require.Len(t, rec.changes, 1)
	assert.Equal(t, roleSet(c, "coord.type.type"), rec.changes[0])

	oldType.SetType(sample.Kind3)
	old.SetType(sample.NewCoordType(sample.Kind2))
	assert.Len(t, rec.changes, 1, "detached objects must stay silent")

	fresh.Type.SetType(sample.Kind2)
	require.Len(t, rec.changes, 2)
	assert.Equal(t, roleSet(c, "coord.type.type"), rec.changes[1])
	assert.Same(t, item, rec.owners[1])
}

func TestEngine_SwapReportsDependentRoles(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "coord", "coord.x", "coord.y", "name"))

	item := nestedItem()
	e.Attach(item)

	// Same values, new object: every dependent role is reported.
	item.SetCoord(sample.NewCoord(0, 0))
	require.Len(t, rec.changes, 1)
	assert.Equal(t, roleSet(c, "coord", "coord.x", "coord.y"), rec.changes[0])
}

func TestEngine_AssigningNilSlot(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "coord.x"))

	item := sample.NewItem(0, "a")
	e.Attach(item)

	coord := sample.NewCoord(0, 0)
	item.SetCoord(coord)
	require.Len(t, rec.changes, 1)

	coord.SetX(5)
	require.Len(t, rec.changes, 2)
	assert.Equal(t, roleSet(c, "coord.x"), rec.changes[1])

	item.SetCoord(nil)
	require.Len(t, rec.changes, 3)
	coord.SetX(6)
	assert.Len(t, rec.changes, 3)
}

func TestEngine_AttachIsIdempotent(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "name"))

	item := sample.NewItem(0, "a")
	e.Attach(item)
	e.Attach(item)
	assert.Equal(t, 1, e.Len())

	item.SetName("b")
	assert.Len(t, rec.changes, 1)
}

func TestEngine_Detach(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "name"))

	item := sample.NewItem(0, "a")
	e.Attach(item)
	assert.True(t, e.IsAttached(item))
	assert.True(t, e.IsBound(item))

	assert.True(t, e.Detach(item))
	assert.False(t, e.Detach(item))
	item.SetName("b")
	assert.Empty(t, rec.changes)
	assert.False(t, e.IsAttached(item))
}

func TestEngine_SetWatchedNeedsRebind(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "name"))

	item := sample.NewItem(0, "a")
	e.Attach(item)

	assert.True(t, e.SetWatched(roleSet(c, "id")))
	assert.False(t, e.SetWatched(roleSet(c, "id")))

	item.SetName("b")
	item.SetID(10)
	assert.Empty(t, rec.changes)

	e.RebindAll()
	item.SetID(11)
	require.Len(t, rec.changes, 1)
	assert.Equal(t, roleSet(c, "id"), rec.changes[0])
	assert.Equal(t, 0, item.Receivers("nameChanged"))
}

func TestEngine_EmptyWatchedUnbinds(t *testing.T) {
	c := itemCatalog(t)
	e := NewEngine(c, nil)
	e.SetWatched(roleSet(c, "name"))

	item := sample.NewItem(0, "a")
	e.Attach(item)
	require.True(t, e.IsBound(item))

	e.SetWatched(nil)
	e.RebindAll()
	assert.False(t, e.IsBound(item))
	assert.True(t, e.IsAttached(item))
}

func TestEngine_SignalRoles(t *testing.T) {
	c := itemCatalog(t)
	rec := &recorder{}
	e := NewEngine(c, rec.record)
	e.SetWatched(roleSet(c, "changed", "coord.type.changed"))

	item := nestedItem()
	e.Attach(item)

	item.EmitChanged()
	item.Coord.Type.EmitChanged()
	require.Len(t, rec.changes, 2)
	assert.Equal(t, roleSet(c, "changed"), rec.changes[0])
	assert.Equal(t, roleSet(c, "coord.type.changed"), rec.changes[1])
}

func TestEngine_Close(t *testing.T) {
	c := itemCatalog(t)
	e := NewEngine(c, nil)
	e.SetWatched(roleSet(c, "name"))

	items := sample.Items(3)
	for _, item := range items {
		e.Attach(item)
	}
	assert.Equal(t, 3, e.Len())

	e.Close()
	assert.Equal(t, 0, e.Len())
	for _, item := range items {
		assert.Equal(t, 0, item.Receivers("nameChanged"))
	}
}
