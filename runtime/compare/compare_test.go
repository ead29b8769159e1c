package compare

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/objectmodel/internal/sample"
)

func TestDefault(t *testing.T) {
	now := time.Unix(100, 0)
	tests := []struct {
		name string
		a, b any
		want Result
	}{
		{"ints", 1, 2, Less},
		{"equal ints", 3, 3, Equal},
		{"strings", "b", "a", Greater},
		{"bools", false, true, Less},
		{"floats", 1.5, 1.25, Greater},
		{"int and float", 1, 1.5, Less},
		{"int and float equal", 2, 2.0, Equal},
		{"float32 and float64", float32(0.5), 0.5, Equal},
		{"negative int and uint", -1, uint(0), Less},
		{"enums", sample.Kind1, sample.Kind3, Less},
		{"times", now, now.Add(time.Second), Less},
		{"durations", time.Second, time.Millisecond, Greater},
		{"bytes", []byte("a"), []byte("ab"), Less},
		{"missing", nil, 1, Unknown},
		{"both missing", nil, nil, Equal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Default(tt.a, tt.b))
		})
	}
}

func TestDefault_StructWithUncomparableField(t *testing.T) {
	type tagged struct {
		Value any
	}
	a := tagged{Value: []int{1, 2}}
	b := tagged{Value: []int{1, 2}}
	c := tagged{Value: []int{1, 3}}

	assert.NotPanics(t, func() {
		assert.Equal(t, Equal, Default(a, b))
		assert.Equal(t, Less, Default(a, c))
		assert.Equal(t, Equal, Default(tagged{Value: 1}, tagged{Value: 1}))
	})
}

func TestDefault_IsAntisymmetric(t *testing.T) {
	values := []any{1, 2.5, "x", "y", true, sample.Kind2, []int{1, 2}}
	for _, a := range values {
		for _, b := range values {
			assert.Equal(t, Default(a, b), Default(b, a).Reverse(), "%v <=> %v", a, b)
		}
	}
}

func TestDefault_Registered(t *testing.T) {
	type version string
	Register(func(a, b version) Result {
		return FromInt(len(a) - len(b))
	})
	defer Unregister(reflect.TypeFor[version]())

	assert.Equal(t, Less, Default(version("z"), version("aa")))
	assert.True(t, Equals(version("ab"), version("cd")))
}

func TestComparator_Roles(t *testing.T) {
	c := NewDefault("name", "id", "name")
	assert.Equal(t, []string{"id", "name"}, c.Roles())
	assert.True(t, c.HasRole("id"))
	assert.False(t, c.HasRole("coord.x"))

	changes := 0
	c.Changed.Subscribe(func(struct{}) { changes++ })
	c.SetRoles("id", "name")
	assert.Equal(t, 0, changes)
	c.SetRoles("id")
	c.SetEnabled(false)
	assert.Equal(t, 2, changes)
}

type rows []map[string]any

func (r rows) Data(row int, role any) (any, bool) {
	v, ok := r[row][role.(string)]
	return v, ok
}

func TestComparator_Func(t *testing.T) {
	evenFirst := NewFunc(func(a, b any) Result {
		x, y := a.(int), b.(int)
		if x%2 != y%2 {
			return FromInt(x%2 - y%2)
		}
		return Default(x, y)
	}, "id")
	data := rows{{"id": 1}, {"id": 2}, {"id": 0}}

	assert.Equal(t, Greater, evenFirst.CompareRows("id", data, 0, 1))
	assert.Equal(t, Greater, evenFirst.CompareRows("id", data, 1, 2))
	assert.Equal(t, Unknown, evenFirst.CompareRows("name", data, 0, 1))

	evenFirst.SetEnabled(false)
	assert.Equal(t, Unknown, evenFirst.CompareRows("id", data, 0, 1))
}

func TestComparator_Group(t *testing.T) {
	reversed := NewFunc(func(a, b any) Result { return Default(b, a) }, "id")
	plain := NewDefault("id", "name")
	g := NewGroup(reversed, plain)
	data := rows{{"id": 1, "name": "a"}, {"id": 2, "name": "b"}}

	assert.Equal(t, []string{"id", "name"}, g.Roles())
	assert.Equal(t, Greater, g.CompareRows("id", data, 0, 1))
	assert.Equal(t, Less, g.CompareRows("name", data, 0, 1))

	changes := 0
	g.Changed.Subscribe(func(struct{}) { changes++ })
	reversed.SetEnabled(false)
	assert.Equal(t, 1, changes)
	assert.Equal(t, Less, g.CompareRows("id", data, 0, 1))

	assert.True(t, g.Remove(plain))
	assert.Equal(t, 2, changes)
	assert.False(t, g.HasRole("name"))
	plain.SetEnabled(false)
	assert.Equal(t, 2, changes, "removed children no longer propagate")
}

func TestComparator_ValueList(t *testing.T) {
	c := NewValueList("tags")
	assert.Equal(t, Less, c.Compare("tags", []string{"a", "b"}, []string{"a", "c"}))
	assert.Equal(t, Less, c.Compare("tags", []string{"a"}, []string{"a", "b"}))
	assert.Equal(t, Equal, c.Compare("tags", []int{1}, []int{1}))
	assert.Equal(t, Greater, c.Compare("tags", nil, []int{1}))
	assert.Equal(t, Less, c.Compare("tags", []int{1}, []int(nil)))
	assert.Equal(t, Unknown, c.Compare("tags", nil, nil))
}

func TestComparator_ObjectList(t *testing.T) {
	c := NewObjectList("id", "children")
	a := []*sample.Item{sample.NewItem(1, "a"), sample.NewItem(5, "b")}
	b := []*sample.Item{sample.NewItem(1, "c"), sample.NewItem(7, "d")}

	assert.Equal(t, Less, c.Compare("children", a, b))
	assert.Equal(t, Greater, c.Compare("children", b, a))
	assert.Equal(t, Greater, c.Compare("children", a, a[:1]))

	c.SetValueRole("name")
	assert.Equal(t, Less, c.Compare("children", a, b))

	c.SetValueRole("missing")
	assert.Equal(t, Unknown, c.Compare("children", a, b))

	coords := []*sample.Coord{sample.NewCoord(0, 0)}
	assert.Equal(t, Unknown, c.Compare("children", a, coords))
}

func TestChain(t *testing.T) {
	data := rows{
		{"x": 0.0, "type": sample.Kind3, "name": "c"},
		{"x": 0.0, "type": sample.Kind2, "name": "b"},
		{"x": 1.0, "type": sample.Kind1, "name": "a"},
	}
	chain := Chain{Roles: []string{"x", "type"}}
	assert.Equal(t, Greater, chain.Compare(data, 0, 1))
	assert.True(t, chain.Less(data, 1, 2))

	chain.Comparator = NewFunc(func(a, b any) Result {
		return FromInt(strings.Compare(b.(string), a.(string)))
	}, "name")
	chain.Roles = []string{"name"}
	assert.True(t, chain.Less(data, 0, 1))

	chain.Roles = []string{"missing"}
	assert.Equal(t, Equal, chain.Compare(data, 0, 1))
}
