// Package sample holds small node types used by tests, the CLI and the
// websocket feed demo.
package sample

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Kind is an enumeration carried by CoordType.
type Kind int

const (
	Kind0 Kind = iota
	Kind1
	Kind2
	Kind3
)

func (k Kind) String() string {
	return fmt.Sprintf("Kind%d", int(k))
}

// CoordType is the innermost node of the sample graph.
type CoordType struct {
	object.Base
	Type Kind          `om:"type,notify=typeChanged"`
	_    object.Signal `om:"changed"`
}

// NewCoordType creates a CoordType with the default kind.
func NewCoordType(kind Kind) *CoordType {
	return &CoordType{Type: kind}
}

// SetType sets the kind.
func (c *CoordType) SetType(v Kind) {
	if c.Type == v {
		return
	}
	c.Type = v
	c.Emit("typeChanged")
}

// EmitChanged fires the bare changed signal.
func (c *CoordType) EmitChanged() {
	c.Emit("changed")
}

// Coord is a nested node holding a position and a type.
type Coord struct {
	object.Base
	X    float64    `om:"x,notify=xChanged"`
	Y    float32    `om:"y,notify=yChanged"`
	Type *CoordType `om:"type,notify=typeChanged"`
}

// NewCoord creates a Coord.
func NewCoord(x float64, y float32) *Coord {
	return &Coord{X: x, Y: y}
}

// SetX sets x.
func (c *Coord) SetX(v float64) {
	if c.X == v {
		return
	}
	c.X = v
	c.Emit("xChanged")
}

// SetY sets y.
func (c *Coord) SetY(v float32) {
	if c.Y == v {
		return
	}
	c.Y = v
	c.Emit("yChanged")
}

// SetType replaces the nested type node.
func (c *Coord) SetType(v *CoordType) {
	if c.Type == v {
		return
	}
	c.Type = v
	c.Emit("typeChanged")
}

// Record is embedded by Item and contributes inherited roles.
type Record struct {
	object.Base
	ID int           `om:"id,notify=idChanged"`
	_  object.Signal `om:"changed"`
}

// SetID sets the id.
func (r *Record) SetID(v int) {
	if r.ID == v {
		return
	}
	r.ID = v
	r.Emit("idChanged")
}

// EmitChanged fires the bare changed signal.
func (r *Record) EmitChanged() {
	r.Emit("changed")
}

// Item is the root sample node.
type Item struct {
	Record
	Name  string `om:"name,notify=nameChanged"`
	Coord *Coord `om:"coord,notify=coordChanged"`
}

// NewItem creates an Item.
func NewItem(id int, name string) *Item {
	item := &Item{Name: name}
	item.ID = id
	return item
}

// SetName sets the name.
func (i *Item) SetName(v string) {
	if i.Name == v {
		return
	}
	i.Name = v
	i.Emit("nameChanged")
}

// SetCoord replaces the nested coord.
func (i *Item) SetCoord(v *Coord) {
	if i.Coord == v {
		return
	}
	i.Coord = v
	i.Emit("coordChanged")
}

// Items builds n items with ids 0..n-1, name str(n-1-i), object name
// objectName<i>, coord.x floor(i/2), coord.y sin(i*pi/2) and coord.type 3-i
// clamped to Kind0.
func Items(n int) []*Item {
	items := make([]*Item, n)
	for i := range items {
		item := NewItem(i, fmt.Sprint(n-1-i))
		item.SetObjectName(fmt.Sprintf("objectName%d", i))
		coord := NewCoord(math.Floor(float64(i)/2), float32(math.Sin(float64(i)*math.Pi/2)))
		kind := Kind(3 - i)
		if kind < Kind0 {
			kind = Kind0
		}
		coord.SetType(NewCoordType(kind))
		item.SetCoord(coord)
		items[i] = item
	}
	return items
}

// Objects converts items to the generic object slice used by lists.
func Objects[T object.Object](items []T) []object.Object {
	out := make([]object.Object, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

var types = map[string]reflect.Type{
	"Item":      reflect.TypeOf((*Item)(nil)),
	"Record":    reflect.TypeOf((*Record)(nil)),
	"Coord":     reflect.TypeOf((*Coord)(nil)),
	"CoordType": reflect.TypeOf((*CoordType)(nil)),
}

// Type returns a sample type by name.
func Type(name string) (reflect.Type, bool) {
	t, ok := types[name]
	return t, ok
}

// TypeNames returns the sample type names in sorted order.
func TypeNames() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
