package model

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/conduit-lang/objectmodel/runtime/object"
)

// Keyed indexes the items of a List by key. The list stays the single
// owner of the rows: every change goes through it, and rows leaving the
// list by any other path drop out of the index.
type Keyed[K comparable, T object.Object] struct {
	list        *List
	index       map[K]T
	unsubscribe func()
}

// NewKeyed indexes the rows already in list by the value of keyRole. With
// an empty keyRole the existing rows are cleared instead.
func NewKeyed[K comparable, T object.Object](list *List, keyRole string) (*Keyed[K, T], error) {
	k := &Keyed[K, T]{list: list, index: make(map[K]T)}
	if list.Len() > 0 {
		if keyRole == "" {
			list.Clear()
		} else if err := k.load(keyRole); err != nil {
			return nil, err
		}
	}
	k.unsubscribe = list.ItemUninstalled.Subscribe(k.forget)
	return k, nil
}

func (k *Keyed[K, T]) load(keyRole string) error {
	if _, err := k.list.RoleID(keyRole); err != nil {
		return err
	}
	for row := 0; row < k.list.Len(); row++ {
		item, ok := k.list.At(row).(T)
		if !ok {
			return fmt.Errorf("%w: row %d is %T", ErrWrongType, row, k.list.At(row))
		}
		v, _ := k.list.Data(row, keyRole)
		key, ok := v.(K)
		if !ok {
			return fmt.Errorf("%w: key %s of row %d is %T, want %v", ErrWrongType, keyRole, row, v, reflect.TypeFor[K]())
		}
		k.index[key] = item
	}
	return nil
}

func (k *Keyed[K, T]) forget(item object.Object) {
	maps.DeleteFunc(k.index, func(_ K, v T) bool {
		return object.Object(v) == item
	})
}

// List returns the underlying list.
func (k *Keyed[K, T]) List() *List {
	return k.list
}

// Len returns the number of rows of the list.
func (k *Keyed[K, T]) Len() int {
	return k.list.Len()
}

// Contains reports whether key is indexed.
func (k *Keyed[K, T]) Contains(key K) bool {
	_, ok := k.index[key]
	return ok
}

// Get returns the item stored under key.
func (k *Keyed[K, T]) Get(key K) (T, bool) {
	item, ok := k.index[key]
	return item, ok
}

// GetOrCreate returns the item under key, appending a default item first
// when there is none.
func (k *Keyed[K, T]) GetOrCreate(key K) (T, error) {
	if item, ok := k.index[key]; ok {
		return item, nil
	}
	var zero T
	obj, err := newItemOf(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	item := obj.(T)
	if err := k.Insert(key, item); err != nil {
		return zero, err
	}
	return item, nil
}

// Insert stores item under key. An item already under key is replaced in
// place, otherwise item is appended. A nil item is ignored.
func (k *Keyed[K, T]) Insert(key K, item T) error {
	if object.IsNil(item) {
		return nil
	}
	var err error
	if prev, ok := k.index[key]; ok {
		err = k.list.Set(k.list.IndexOf(prev), item)
	} else {
		err = k.list.Append(item)
	}
	if err != nil {
		return err
	}
	k.index[key] = item
	return nil
}

// Take removes the item under key from the list without destroying it.
func (k *Keyed[K, T]) Take(key K) (T, bool) {
	item, ok := k.index[key]
	if !ok {
		return item, false
	}
	delete(k.index, key)
	k.list.Take(k.list.IndexOf(item))
	return item, true
}

// Remove removes the item under key from the list.
func (k *Keyed[K, T]) Remove(key K) bool {
	item, ok := k.index[key]
	if !ok {
		return false
	}
	return k.list.RemoveItem(item)
}

// Clear empties the index and the list.
func (k *Keyed[K, T]) Clear() {
	clear(k.index)
	k.list.Clear()
}

// Map returns a copy of the index.
func (k *Keyed[K, T]) Map() map[K]T {
	return maps.Clone(k.index)
}

// Close stops tracking the list.
func (k *Keyed[K, T]) Close() {
	if k.unsubscribe != nil {
		k.unsubscribe()
		k.unsubscribe = nil
	}
}
