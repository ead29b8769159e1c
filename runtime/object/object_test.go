package object

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Base
	Value int `om:"value,notify=valueChanged"`
}

func TestBase_ConnectAndEmit(t *testing.T) {
	n := &node{}
	var calls []string
	n.Connect("valueChanged", func() { calls = append(calls, "first") })
	second := n.Connect("valueChanged", func() { calls = append(calls, "second") })

	n.Emit("valueChanged")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, n.Receivers("valueChanged"))

	require.True(t, second.Disconnect())
	assert.False(t, second.Disconnect())
	assert.Equal(t, "valueChanged", second.Signal())

	calls = nil
	n.Emit("valueChanged")
	assert.Equal(t, []string{"first"}, calls)

	n.Emit("unknown")
	assert.Zero(t, n.Receivers("unknown"))
}

func TestBase_DisconnectDuringEmit(t *testing.T) {
	n := &node{}
	var calls int
	var later Connection
	n.Connect("valueChanged", func() {
		calls++
		later.Disconnect()
	})
	later = n.Connect("valueChanged", func() { calls += 10 })

	n.Emit("valueChanged")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, n.Receivers("valueChanged"))
}

func TestBase_ObjectName(t *testing.T) {
	n := &node{}
	var changed int
	n.Connect(ObjectNameChanged, func() { changed++ })

	n.SetObjectName("a")
	n.SetObjectName("a")
	n.SetObjectName("b")
	assert.Equal(t, 2, changed)
	assert.Equal(t, "b", n.GetObjectName())
}

func TestBase_ID(t *testing.T) {
	a, b := &node{}, &node{}
	assert.NotEqual(t, uuid.Nil, a.ID())
	assert.Equal(t, a.ID(), a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, &a.Base, a.ObjectBase())
}

func TestBase_Destroy(t *testing.T) {
	n := &node{}
	var destroyed, changed int
	n.OnDestroyed(func() { destroyed++ })
	n.Connect("valueChanged", func() { changed++ })

	n.Destroy()
	n.Destroy()
	assert.True(t, n.IsDestroyed())
	assert.Equal(t, 1, destroyed)

	n.Emit("valueChanged")
	assert.Zero(t, changed)
	assert.Zero(t, n.Receivers("valueChanged"))

	conn := n.Connect("valueChanged", func() {})
	assert.False(t, conn.Valid())
	assert.False(t, conn.Disconnect())
}

func TestConnect_NilSlot(t *testing.T) {
	n := &node{}
	assert.False(t, n.Connect("valueChanged", nil).Valid())
}

func TestIsNil(t *testing.T) {
	var typed *node
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(typed))
	assert.False(t, IsNil(&node{}))
}

func TestEvent(t *testing.T) {
	var e Event[int]
	var got []int
	unsubscribe := e.Subscribe(func(v int) { got = append(got, v) })
	e.Subscribe(func(v int) { got = append(got, v*10) })

	e.Emit(1)
	assert.Equal(t, []int{1, 10}, got)
	assert.Equal(t, 2, e.Len())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, e.Len())

	got = nil
	e.Emit(2)
	assert.Equal(t, []int{20}, got)
}

func TestEvent_UnsubscribeDuringEmit(t *testing.T) {
	var e Event[string]
	var calls int
	var second func()
	e.Subscribe(func(string) {
		calls++
		second()
	})
	second = e.Subscribe(func(string) { calls += 10 })

	e.Emit("x")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, e.Len())
}
