package model

import (
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/object"
)

// prepare validates items for insertion and returns them with nil slots
// replaced by default items in the owning variant. Nothing is modified
// when an error is returned.
func (m *List) prepare(items []object.Object) ([]object.Object, error) {
	out := make([]object.Object, len(items))
	itemType := m.itemType
	if itemType == nil {
		itemType = m.staticType
	}
	seen := make(map[*object.Base]bool, len(items))

	for i, item := range items {
		if object.IsNil(item) {
			out[i] = nil
			continue
		}
		t := reflect.TypeOf(item)
		if itemType == nil {
			itemType = t
		} else if t != itemType {
			return nil, fmt.Errorf("%w: got %v, want %v", ErrWrongType, t, itemType)
		}
		base := item.ObjectBase()
		if _, ok := m.entries[base]; ok || seen[base] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, describe(item))
		}
		if base.IsDestroyed() {
			return nil, fmt.Errorf("insert destroyed item %s", describe(item))
		}
		seen[base] = true
		out[i] = item
	}

	if !m.owning {
		return out, nil
	}
	for i, item := range out {
		if item != nil {
			continue
		}
		obj, err := newItemOf(itemType)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

func newItemOf(t reflect.Type) (object.Object, error) {
	if t == nil {
		return nil, fmt.Errorf("create default item: %w", ErrNotInitialized)
	}
	obj, ok := reflect.New(t.Elem()).Interface().(object.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrWrongType, t)
	}
	return obj, nil
}

func (m *List) install(item object.Object) {
	if item == nil {
		return
	}
	if m.catalog == nil {
		if err := m.initialize(reflect.TypeOf(item)); err != nil {
			m.logger.Error("Failed to initialize list", zap.Error(err))
		}
	}
	base := item.ObjectBase()
	e := &entry{item: item}
	e.destroyed = base.OnDestroyed(func() {
		m.onItemDestroyed(item)
	})
	m.entries[base] = e
	if m.engine != nil {
		m.engine.Attach(item)
	}
	m.ItemInstalled.Emit(item)
}

// uninstall releases a row. Owned items are destroyed unless they were taken.
func (m *List) uninstall(item object.Object) {
	if item == nil {
		return
	}
	base := item.ObjectBase()
	e, ok := m.entries[base]
	if !ok {
		return
	}
	delete(m.entries, base)
	e.destroyed.Disconnect()
	if m.engine != nil {
		m.engine.Detach(item)
	}
	m.ItemUninstalled.Emit(item)
	if m.owning && !e.taken {
		base.Destroy()
	}
}

func (m *List) onItemDestroyed(item object.Object) {
	row := m.IndexOf(item)
	if row < 0 {
		return
	}
	if e, ok := m.entries[item.ObjectBase()]; ok {
		e.taken = true
	}
	m.logger.Debug("Removing destroyed item", zap.Int("row", row))
	m.removeRows(row, 1)
}

func (m *List) emitCount(before int) {
	if len(m.items) != before {
		m.RowCountChanged.Emit(len(m.items))
	}
}

// Insert inserts item before row. Row may equal Len.
func (m *List) Insert(row int, item object.Object) error {
	return m.InsertAll(row, item)
}

// InsertAll inserts items as one block before row.
func (m *List) InsertAll(row int, items ...object.Object) error {
	if row < 0 || row > len(m.items) {
		return fmt.Errorf("%w: insert at %d of %d", ErrOutOfRange, row, len(m.items))
	}
	if len(items) == 0 {
		return nil
	}
	prepared, err := m.prepare(items)
	if err != nil {
		return err
	}

	before := len(m.items)
	m.items = slices.Insert(m.items, row, prepared...)
	for _, item := range prepared {
		m.install(item)
	}
	m.RowsInserted.Emit(RowRange{First: row, Last: row + len(prepared) - 1})
	m.emitCount(before)
	return nil
}

// Append adds item at the end.
func (m *List) Append(item object.Object) error {
	return m.InsertAll(len(m.items), item)
}

// AppendAll adds items at the end as one block.
func (m *List) AppendAll(items ...object.Object) error {
	return m.InsertAll(len(m.items), items...)
}

// AppendList appends the items of other. Both lists must have the same item type.
func (m *List) AppendList(other *List) error {
	if other == nil || other.Len() == 0 {
		return nil
	}
	if m.itemType != nil && other.itemType != nil && m.itemType != other.itemType {
		return fmt.Errorf("%w: got %v, want %v", ErrWrongType, other.itemType, m.itemType)
	}
	return m.AppendAll(other.Items()...)
}

// AppendValues creates a default item, writes values by dotted role name
// and appends it. Only the owning variant creates items.
func (m *List) AppendValues(values map[string]any) error {
	if !m.owning {
		return ErrNotOwning
	}
	item, err := newItemOf(m.itemType)
	if err != nil {
		return err
	}
	if err := m.writeValues(item, values); err != nil {
		return err
	}
	return m.Append(item)
}

// Set replaces the item at row.
func (m *List) Set(row int, item object.Object) error {
	if row < 0 || row >= len(m.items) {
		return fmt.Errorf("%w: set %d of %d", ErrOutOfRange, row, len(m.items))
	}
	old := m.items[row]
	if sameItem(old, item) {
		return nil
	}
	prepared, err := m.prepare([]object.Object{item})
	if err != nil {
		return err
	}
	m.items[row] = prepared[0]
	m.uninstall(old)
	m.install(prepared[0])
	m.DataChanged.Emit(DataChange{First: row, Last: row})
	return nil
}

// SetItems replaces the whole content and resets the list. Items already
// in the list stay installed.
func (m *List) SetItems(items []object.Object) error {
	itemType := m.staticType
	seen := make(map[*object.Base]bool, len(items))
	hasNil := false
	for _, item := range items {
		if object.IsNil(item) {
			hasNil = true
			continue
		}
		t := reflect.TypeOf(item)
		if itemType == nil {
			itemType = t
		} else if t != itemType {
			return fmt.Errorf("%w: got %v, want %v", ErrWrongType, t, itemType)
		}
		base := item.ObjectBase()
		if seen[base] {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, describe(item))
		}
		if base.IsDestroyed() {
			return fmt.Errorf("insert destroyed item %s", describe(item))
		}
		seen[base] = true
	}
	if m.owning && hasNil && itemType == nil {
		itemType = m.itemType
	}

	prepared := make([]object.Object, len(items))
	for i, item := range items {
		switch {
		case !object.IsNil(item):
			prepared[i] = item
		case m.owning:
			obj, err := newItemOf(itemType)
			if err != nil {
				return err
			}
			prepared[i] = obj
		}
	}

	before := len(m.items)
	for _, item := range m.items {
		if item != nil && !seen[item.ObjectBase()] {
			m.uninstall(item)
		}
	}
	if len(seen) == 0 && !(m.owning && hasNil) {
		m.resetMetaData()
	} else if m.itemType != nil && itemType != m.itemType {
		m.resetMetaData()
	}

	m.items = prepared
	for _, item := range prepared {
		if item == nil {
			continue
		}
		if _, ok := m.entries[item.ObjectBase()]; !ok {
			m.install(item)
		}
	}
	m.ModelReset.Emit(struct{}{})
	m.emitCount(before)
	return nil
}

// Remove removes count rows starting at row.
func (m *List) Remove(row, count int) error {
	if count <= 0 {
		return nil
	}
	if row < 0 || row+count > len(m.items) {
		return fmt.Errorf("%w: remove %d rows at %d of %d", ErrOutOfRange, count, row, len(m.items))
	}
	m.removeRows(row, count)
	return nil
}

func (m *List) removeRows(row, count int) {
	before := len(m.items)
	removed := slices.Clone(m.items[row : row+count])
	m.items = slices.Delete(m.items, row, row+count)
	for _, item := range removed {
		m.uninstall(item)
	}
	m.RowsRemoved.Emit(RowRange{First: row, Last: row + count - 1})
	m.emitCount(before)
	if len(m.items) == 0 {
		m.resetMetaData()
	}
}

// RemoveItem removes item. It reports whether it was found.
func (m *List) RemoveItem(item object.Object) bool {
	row := m.IndexOf(item)
	if row < 0 {
		return false
	}
	m.removeRows(row, 1)
	return true
}

// RemoveByName removes the first item with the given object name.
func (m *List) RemoveByName(name string) bool {
	row := m.IndexOfName(name)
	if row < 0 {
		return false
	}
	m.removeRows(row, 1)
	return true
}

// RemoveAll removes every item whose roles match values and returns the
// number of removed rows.
func (m *List) RemoveAll(values map[string]any) int {
	return m.RemoveAllIf(func(item object.Object) bool {
		return m.matches(item, values)
	})
}

// RemoveAllIf removes every item for which pred returns true.
func (m *List) RemoveAllIf(pred func(object.Object) bool) int {
	n := 0
	for row := len(m.items) - 1; row >= 0; row-- {
		if pred(m.items[row]) {
			m.removeRows(row, 1)
			n++
		}
	}
	return n
}

// Take removes the item at row without destroying it.
func (m *List) Take(row int) object.Object {
	if row < 0 || row >= len(m.items) {
		return nil
	}
	item := m.items[row]
	if item != nil {
		if e, ok := m.entries[item.ObjectBase()]; ok {
			e.taken = true
		}
	}
	m.removeRows(row, 1)
	return item
}

// TakeFirst takes the first item.
func (m *List) TakeFirst() object.Object {
	return m.Take(0)
}

// TakeLast takes the last item.
func (m *List) TakeLast() object.Object {
	return m.Take(len(m.items) - 1)
}

// Move moves count rows starting at from so that the block starts at to.
func (m *List) Move(from, to, count int) error {
	n := len(m.items)
	if count <= 0 || from < 0 || to < 0 || from+count > n || to+count > n {
		return fmt.Errorf("%w: move %d rows from %d to %d of %d", ErrOutOfRange, count, from, to, n)
	}
	if from == to {
		return nil
	}
	block := slices.Clone(m.items[from : from+count])
	rest := slices.Delete(slices.Clone(m.items), from, from+count)
	m.items = slices.Insert(rest, to, block...)
	m.RowsMoved.Emit(MoveRange{First: from, Last: from + count - 1, To: to})
	return nil
}

// Clear removes every row and resets the list.
func (m *List) Clear() {
	if len(m.items) == 0 {
		return
	}
	before := len(m.items)
	old := m.items
	m.items = nil
	for _, item := range old {
		m.uninstall(item)
	}
	m.resetMetaData()
	m.ModelReset.Emit(struct{}{})
	m.emitCount(before)
}

// Resize grows the list with default items or shrinks it from the end.
// Only the owning variant creates items.
func (m *List) Resize(n int) error {
	if !m.owning {
		return ErrNotOwning
	}
	if n < 0 {
		return fmt.Errorf("%w: resize to %d", ErrOutOfRange, n)
	}
	switch {
	case n > len(m.items):
		return m.AppendAll(make([]object.Object, n-len(m.items))...)
	case n < len(m.items):
		return m.Remove(n, len(m.items)-n)
	}
	return nil
}

func sameItem(a, b object.Object) bool {
	if object.IsNil(a) || object.IsNil(b) {
		return object.IsNil(a) && object.IsNil(b)
	}
	return a.ObjectBase() == b.ObjectBase()
}

func describe(item object.Object) string {
	if object.IsNil(item) {
		return "<nil>"
	}
	if name := item.ObjectBase().GetObjectName(); name != "" {
		return fmt.Sprintf("%T(%s)", item, name)
	}
	return fmt.Sprintf("%T(%s)", item, item.ObjectBase().ID())
}
