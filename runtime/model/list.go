// Package model adapts an ordered sequence of nodes into an observable,
// role addressable list.
//
// A List resolves its RoleCatalog from the item type, keeps one binding per
// installed row through a binding.Engine and reports the union of watched
// roles that changed across all rows as one coalesced ItemDataChanged event
// per loop tick. Structural changes are reported synchronously.
package model

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/binding"
	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/object"
)

var (
	// ErrWrongType is returned when an item does not have the list's item type.
	ErrWrongType = errors.New("item has the wrong type")
	// ErrDuplicateItem is returned when an item is already in the list.
	ErrDuplicateItem = errors.New("item is already in the list")
	// ErrOutOfRange is returned for row arguments outside the list.
	ErrOutOfRange = errors.New("row out of range")
	// ErrNotInitialized is returned when the item type is not known yet.
	ErrNotInitialized = errors.New("list is not initialized")
	// ErrAlreadyInstalled is returned when the item type is fixed twice.
	ErrAlreadyInstalled = errors.New("item type is already installed")
	// ErrNotOwning is returned by operations only the owning variant supports.
	ErrNotOwning = errors.New("operation requires an owning list")
)

// RowRange is an inclusive range of rows.
type RowRange struct {
	First int
	Last  int
}

// Count returns the number of rows in the range.
func (r RowRange) Count() int {
	return r.Last - r.First + 1
}

// MoveRange describes a block of rows moved so that it starts at To.
type MoveRange struct {
	First int
	Last  int
	To    int
}

// DataChange reports replaced rows. Empty Roles means every role.
type DataChange struct {
	First int
	Last  int
	Roles metadata.RoleSet
}

type entry struct {
	item      object.Object
	destroyed object.Connection
	taken     bool
}

// List is an observable list of nodes of one type.
type List struct {
	loop   *loop.Loop
	logger *zap.Logger
	owning bool

	staticType reflect.Type
	itemType   reflect.Type
	catalog    *metadata.RoleCatalog
	engine     *binding.Engine
	changed    *loop.Coalescer[metadata.RoleID]
	schedule   loop.Schedule

	items   []object.Object
	entries map[*object.Base]*entry

	dataRolesSpec    any
	dataRoles        metadata.RoleSet
	roleNames        map[metadata.RoleID]string
	changedRolesSpec any
	changedRoles     metadata.RoleSet

	providers []RolesProvider
	reconnect *loop.Handle
	closed    bool

	RowsInserted     object.Event[RowRange]
	RowsRemoved      object.Event[RowRange]
	RowsMoved        object.Event[MoveRange]
	ModelReset       object.Event[struct{}]
	DataChanged      object.Event[DataChange]
	RowCountChanged  object.Event[int]
	ItemDataChanged  object.Event[metadata.RoleSet]
	ItemInstalled    object.Event[object.Object]
	ItemUninstalled  object.Event[object.Object]
	Initialized      object.Event[*metadata.RoleCatalog]
	RoleNamesChanged object.Event[map[metadata.RoleID]string]
}

// Option configures a List.
type Option func(*List)

// WithLoop sets the loop deferred work is scheduled on.
func WithLoop(l *loop.Loop) Option {
	return func(m *List) {
		if l != nil {
			m.loop = l
		}
	}
}

// WithLogger sets the list logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *List) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithItemType fixes the item type up front. The list keeps its catalog
// when it becomes empty.
func WithItemType(t reflect.Type) Option {
	return func(m *List) {
		m.staticType = t
	}
}

// WithDataRoles sets the exposed role spec.
func WithDataRoles(spec any) Option {
	return func(m *List) {
		m.dataRolesSpec = spec
	}
}

// WithItemDataChangedRoles sets the role spec whose changes are reported.
func WithItemDataChangedRoles(spec any) Option {
	return func(m *List) {
		m.changedRolesSpec = spec
	}
}

// WithItemDataChangedSchedule sets the ItemDataChanged delay configuration.
func WithItemDataChangedSchedule(schedule loop.Schedule) Option {
	return func(m *List) {
		m.schedule = schedule
	}
}

// New creates a list that references items without owning them. Nil slots
// are allowed.
func New(opts ...Option) *List {
	return newList(false, opts)
}

// NewOwning creates a list that owns its items: inserting nil creates a
// default item and removed items are destroyed unless they were taken.
func NewOwning(opts ...Option) *List {
	return newList(true, opts)
}

// NewOf creates a reference list with item type T.
func NewOf[T object.Object](opts ...Option) *List {
	return New(append([]Option{WithItemType(metadata.TypeOf[T]())}, opts...)...)
}

// NewOwningOf creates an owning list with item type T.
func NewOwningOf[T object.Object](opts ...Option) *List {
	return NewOwning(append([]Option{WithItemType(metadata.TypeOf[T]())}, opts...)...)
}

func newList(owning bool, opts []Option) *List {
	m := &List{
		owning:           owning,
		logger:           zap.NewNop(),
		entries:          make(map[*object.Base]*entry),
		dataRolesSpec:    metadata.ItemRoleFlag,
		changedRolesSpec: metadata.ItemRoleFlag,
		roleNames:        map[metadata.RoleID]string{metadata.ItemRole: metadata.ItemRoleName},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loop == nil {
		m.loop = loop.Default()
	}
	m.changed = loop.NewCoalescer(m.loop, "model.itemDataChanged", func(ids []metadata.RoleID) {
		m.ItemDataChanged.Emit(metadata.RoleSet(ids))
	})
	m.changed.Timer().SetSchedule(m.schedule)

	if m.staticType != nil {
		if err := m.initialize(m.staticType); err != nil {
			m.logger.Error("Failed to initialize list", zap.Error(err))
		}
	}
	return m
}

// Loop returns the loop the list schedules on.
func (m *List) Loop() *loop.Loop {
	return m.loop
}

// Owning reports whether the list owns its items.
func (m *List) Owning() bool {
	return m.owning
}

// IsInitialized reports whether the item type and catalog are known.
func (m *List) IsInitialized() bool {
	return m.catalog != nil
}

// ItemType returns the item type, or nil before initialization.
func (m *List) ItemType() reflect.Type {
	return m.itemType
}

// Catalog returns the item catalog, or nil before initialization.
func (m *List) Catalog() *metadata.RoleCatalog {
	return m.catalog
}

// Len returns the number of rows.
func (m *List) Len() int {
	return len(m.items)
}

// RowCount is Len.
func (m *List) RowCount() int {
	return len(m.items)
}

// Close releases every row. Owned items are destroyed.
func (m *List) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.reconnect.Cancel()
	m.changed.Close()
	for _, item := range m.items {
		m.uninstall(item)
	}
	m.items = nil
	if m.engine != nil {
		m.engine.Close()
	}
}

func (m *List) initialize(t reflect.Type) error {
	if m.catalog != nil {
		if m.itemType == t {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrAlreadyInstalled, m.itemType)
	}
	catalog, err := metadata.Lookup(t)
	if err != nil {
		return err
	}
	m.itemType = t
	m.catalog = catalog
	m.engine = binding.NewEngine(catalog, m.onItemChanged, binding.WithLogger(m.logger))

	if err := m.applyDataRoles(m.dataRolesSpec); err != nil {
		m.logger.Error("Invalid data roles", zap.Error(err))
	}
	if ids, err := catalog.ParseRoleSpec(m.changedRolesSpec); err != nil {
		m.logger.Error("Invalid item data changed roles", zap.Error(err))
	} else {
		m.changedRoles = ids
	}
	m.engine.SetWatched(m.watchedRoles())

	m.logger.Debug("List initialized",
		zap.String("type", catalog.TypeName()),
		zap.Int("roles", catalog.Len()))
	m.Initialized.Emit(catalog)
	return nil
}

func (m *List) resetMetaData() {
	if m.staticType != nil || m.catalog == nil {
		return
	}
	m.reconnect.Cancel()
	m.reconnect = nil
	m.engine.Close()
	m.engine = nil
	m.catalog = nil
	m.itemType = nil
	m.dataRoles = nil
	m.changedRoles = nil
	m.roleNames = map[metadata.RoleID]string{metadata.ItemRole: metadata.ItemRoleName}
}

func (m *List) onItemChanged(_ object.Object, changed metadata.RoleSet) {
	m.changed.Add(changed...)
}
