package model

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/conduit-lang/objectmodel/runtime/compare"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

// At returns the item at row, or nil when row is out of range.
func (m *List) At(row int) object.Object {
	if row < 0 || row >= len(m.items) {
		return nil
	}
	return m.items[row]
}

// First returns the first item, or nil.
func (m *List) First() object.Object {
	return m.At(0)
}

// Last returns the last item, or nil.
func (m *List) Last() object.Object {
	return m.At(len(m.items) - 1)
}

// Items returns a copy of the rows.
func (m *List) Items() []object.Object {
	return slices.Clone(m.items)
}

// Contains reports whether item is in the list.
func (m *List) Contains(item object.Object) bool {
	if object.IsNil(item) {
		return false
	}
	_, ok := m.entries[item.ObjectBase()]
	return ok
}

// IndexOf returns the row of item, or -1.
func (m *List) IndexOf(item object.Object) int {
	if !m.Contains(item) {
		return -1
	}
	base := item.ObjectBase()
	return slices.IndexFunc(m.items, func(x object.Object) bool {
		return x != nil && x.ObjectBase() == base
	})
}

// IndexOfName returns the row of the first item with the given object name, or -1.
func (m *List) IndexOfName(name string) int {
	return slices.IndexFunc(m.items, func(x object.Object) bool {
		return x != nil && x.ObjectBase().GetObjectName() == name
	})
}

// IndexOfValue returns the first row whose role equals value, or -1.
func (m *List) IndexOfValue(role any, value any) int {
	id, err := m.resolveRole(role)
	if err != nil {
		return -1
	}
	return slices.IndexFunc(m.items, func(x object.Object) bool {
		v, ok := m.catalog.ReadFromRoot(x, id)
		return ok && compare.Equals(v, value)
	})
}

// IndexOfMatch returns the first row matching every dotted role name in
// values, or -1.
func (m *List) IndexOfMatch(values map[string]any) int {
	return slices.IndexFunc(m.items, func(x object.Object) bool {
		return m.matches(x, values)
	})
}

// IndexesOf returns every row matching values.
func (m *List) IndexesOf(values map[string]any) []int {
	var rows []int
	for row, item := range m.items {
		if m.matches(item, values) {
			rows = append(rows, row)
		}
	}
	return rows
}

// Find returns every item matching values.
func (m *List) Find(values map[string]any) []object.Object {
	var out []object.Object
	for _, item := range m.items {
		if m.matches(item, values) {
			out = append(out, item)
		}
	}
	return out
}

// FindFirst returns the first item matching values, or nil.
func (m *List) FindFirst(values map[string]any) object.Object {
	return m.At(m.IndexOfMatch(values))
}

// FindByName returns the first item with the given object name, or nil.
func (m *List) FindByName(name string) object.Object {
	return m.At(m.IndexOfName(name))
}

func (m *List) matches(item object.Object, values map[string]any) bool {
	if object.IsNil(item) || m.catalog == nil {
		return false
	}
	for name, want := range values {
		id := m.catalog.RoleID(name)
		if id == metadata.InvalidRole {
			return false
		}
		got, ok := m.catalog.ReadFromRoot(item, id)
		if !ok || !compare.Equals(got, want) {
			return false
		}
	}
	return true
}

// RoleID resolves a role given as id, dotted name or exposed name.
func (m *List) RoleID(role any) (metadata.RoleID, error) {
	return m.resolveRole(role)
}

func (m *List) resolveRole(role any) (metadata.RoleID, error) {
	if m.catalog == nil {
		return metadata.InvalidRole, ErrNotInitialized
	}
	switch r := role.(type) {
	case metadata.RoleID:
		if _, err := m.catalog.Role(r); err != nil {
			return metadata.InvalidRole, err
		}
		return r, nil
	case int:
		return m.resolveRole(metadata.RoleID(r))
	case string:
		if id := m.catalog.RoleID(r); id != metadata.InvalidRole {
			return id, nil
		}
		for id, name := range m.roleNames {
			if name == r {
				return id, nil
			}
		}
		for _, info := range m.catalog.Roles() {
			if metadata.CamelCase(info.Name) == r {
				return info.ID, nil
			}
		}
		return metadata.InvalidRole, metadata.RoleError{Role: r}
	}
	return metadata.InvalidRole, fmt.Errorf("%w: %T", metadata.ErrInvalidRoleSpec, role)
}

// Data reads a role of the item at row. The boolean is false for rows out
// of range, unknown roles and nil intermediate objects.
func (m *List) Data(row int, role any) (any, bool) {
	item := m.At(row)
	if item == nil {
		return nil, false
	}
	id, err := m.resolveRole(role)
	if err != nil {
		return nil, false
	}
	return m.catalog.ReadFromRoot(item, id)
}

// SetData writes a role of the item at row.
func (m *List) SetData(row int, role any, value any) error {
	if row < 0 || row >= len(m.items) {
		return fmt.Errorf("%w: set data at %d of %d", ErrOutOfRange, row, len(m.items))
	}
	item := m.items[row]
	if item == nil {
		return fmt.Errorf("set data at %d: empty row", row)
	}
	id, err := m.resolveRole(role)
	if err != nil {
		return err
	}
	return m.catalog.WriteToRoot(item, id, value)
}

// SetValues writes several roles of the item at row by dotted name.
func (m *List) SetValues(row int, values map[string]any) error {
	if row < 0 || row >= len(m.items) {
		return fmt.Errorf("%w: set values at %d of %d", ErrOutOfRange, row, len(m.items))
	}
	return m.writeValues(m.items[row], values)
}

func (m *List) writeValues(item object.Object, values map[string]any) error {
	if object.IsNil(item) {
		return fmt.Errorf("write values: empty row")
	}
	catalog := m.catalog
	if catalog == nil {
		var err error
		if catalog, err = metadata.LookupObject(item); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		role, err := catalog.RoleByName(name)
		if err != nil {
			return err
		}
		if err := catalog.WriteToRoot(item, role.ID, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo prints the rows with their exposed roles.
func (m *List) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	typeName := "<uninitialized>"
	if m.catalog != nil {
		typeName = m.catalog.TypeName()
	}
	fmt.Fprintf(&b, "List of %s, %d rows\n", typeName, len(m.items))

	ids := make([]metadata.RoleID, 0, len(m.roleNames))
	for id := range m.roleNames {
		if id != metadata.ItemRole {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	for row, item := range m.items {
		fmt.Fprintf(&b, "%4d %s", row, describe(item))
		for _, id := range ids {
			v, ok := m.catalog.ReadFromRoot(item, id)
			if !ok {
				v = "-"
			}
			fmt.Fprintf(&b, " %s=%v", m.roleNames[id], v)
		}
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
