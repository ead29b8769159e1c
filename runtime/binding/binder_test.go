package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/objectmodel/internal/sample"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

func itemCatalog(t *testing.T) *metadata.RoleCatalog {
	t.Helper()
	c, err := metadata.Lookup(metadata.TypeOf[*sample.Item]())
	require.NoError(t, err)
	return c
}

func notifierOf(t *testing.T, c *metadata.RoleCatalog, name string) metadata.NotifierID {
	t.Helper()
	role, err := c.RoleByName(name)
	require.NoError(t, err)
	require.NotEqual(t, metadata.NoNotifier, role.Notifier)
	return role.Notifier
}

func interestingOf(t *testing.T, c *metadata.RoleCatalog, names ...string) metadata.NotifierSet {
	t.Helper()
	var ids metadata.RoleSet
	for _, name := range names {
		ids = ids.Insert(c.MustRoleID(name))
	}
	return c.NotifiersOf(ids)
}

func nestedItem() *sample.Item {
	item := sample.NewItem(0, "a")
	coord := sample.NewCoord(0, 0)
	coord.SetType(sample.NewCoordType(sample.Kind0))
	item.SetCoord(coord)
	return item
}

func TestSignalBinder_BindIsIdempotent(t *testing.T) {
	c := itemCatalog(t)
	item := sample.NewItem(1, "one")

	fires := 0
	b := NewSignalBinder(c, func(object.Object, metadata.NotifierID) { fires++ })
	n := notifierOf(t, c, "name")

	assert.True(t, b.Bind(item, n))
	assert.True(t, b.Bind(item, n))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, item.Receivers("nameChanged"))

	item.SetName("two")
	assert.Equal(t, 1, fires)

	assert.True(t, b.Unbind(n))
	assert.False(t, b.Unbind(n))
	item.SetName("three")
	assert.Equal(t, 1, fires)
	assert.Equal(t, 0, item.Receivers("nameChanged"))
}

func TestSignalBinder_BindReplacesSender(t *testing.T) {
	c := itemCatalog(t)
	first := sample.NewItem(1, "one")
	second := sample.NewItem(2, "two")

	var senders []object.Object
	b := NewSignalBinder(c, func(sender object.Object, _ metadata.NotifierID) {
		senders = append(senders, sender)
	})
	n := notifierOf(t, c, "name")

	require.True(t, b.Bind(first, n))
	require.True(t, b.Bind(second, n))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 0, first.Receivers("nameChanged"))

	first.SetName("x")
	second.SetName("y")
	require.Len(t, senders, 1)
	assert.Same(t, second, senders[0])
}

func TestSignalBinder_BindNilOrDestroyed(t *testing.T) {
	c := itemCatalog(t)
	b := NewSignalBinder(c, nil)
	n := notifierOf(t, c, "name")

	assert.False(t, b.Bind(nil, n))
	var typedNil *sample.Item
	assert.False(t, b.Bind(typedNil, n))

	item := sample.NewItem(0, "a")
	item.Destroy()
	assert.False(t, b.Bind(item, n))
	assert.Equal(t, 0, b.Len())
}

func TestSignalBinder_BindRoleDeep(t *testing.T) {
	c := itemCatalog(t)
	item := nestedItem()
	b := NewSignalBinder(c, nil)

	bound := b.BindRole(item, metadata.ItemRole, interestingOf(t, c, "coord.type.type"))
	assert.True(t, bound)
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 1, item.Receivers("coordChanged"))
	assert.Equal(t, 1, item.Coord.Receivers("typeChanged"))
	assert.Equal(t, 1, item.Coord.Type.Receivers("typeChanged"))
	assert.Equal(t, 0, item.Coord.Receivers("xChanged"))
	assert.Equal(t, 0, item.Receivers("nameChanged"))

	// Binding again changes nothing.
	b.BindRole(item, metadata.ItemRole, interestingOf(t, c, "coord.type.type"))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 1, item.Coord.Type.Receivers("typeChanged"))
}

func TestSignalBinder_BindRoleNilIntermediate(t *testing.T) {
	c := itemCatalog(t)
	item := sample.NewItem(0, "a")
	b := NewSignalBinder(c, nil)

	assert.True(t, b.BindRole(item, metadata.ItemRole, interestingOf(t, c, "coord.x")))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, item.Receivers("coordChanged"))
}

func TestSignalBinder_BindRoleNilSenderUnbindsSubtree(t *testing.T) {
	c := itemCatalog(t)
	item := nestedItem()
	b := NewSignalBinder(c, nil)
	interesting := interestingOf(t, c, "coord.x", "coord.type.type")

	b.BindRole(item, metadata.ItemRole, interesting)
	assert.Equal(t, 4, b.Len())

	assert.False(t, b.BindRole(nil, c.MustRoleID("coord"), interesting))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 0, item.Coord.Receivers("xChanged"))
	assert.Equal(t, 0, item.Coord.Type.Receivers("typeChanged"))
}

func TestSignalBinder_BindRoleShrinks(t *testing.T) {
	c := itemCatalog(t)
	item := nestedItem()
	b := NewSignalBinder(c, nil)

	b.BindRole(item, metadata.ItemRole, interestingOf(t, c, "name", "coord.type.type"))
	assert.Equal(t, 4, b.Len())

	b.BindRole(item, metadata.ItemRole, interestingOf(t, c, "name"))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 0, item.Receivers("coordChanged"))
}

func TestSignalBinder_EmptyInterestingIsNoop(t *testing.T) {
	c := itemCatalog(t)
	item := nestedItem()
	b := NewSignalBinder(c, nil)

	assert.False(t, b.BindRole(item, metadata.ItemRole, nil))
	assert.Equal(t, 0, b.Len())
}

func TestSignalBinder_UnbindSenderAndAll(t *testing.T) {
	c := itemCatalog(t)
	item := nestedItem()
	b := NewSignalBinder(c, nil)
	b.BindRole(item, metadata.ItemRole, interestingOf(t, c, "name", "coord.x", "coord.y"))
	require.Equal(t, 4, b.Len())

	assert.Equal(t, 2, b.UnbindSender(item.Coord))
	assert.Equal(t, 2, b.Len())
	assert.True(t, b.HasBindings())

	b.UnbindAll()
	assert.False(t, b.HasBindings())
	assert.Equal(t, 0, item.Receivers("nameChanged"))
}
