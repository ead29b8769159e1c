package model

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
)

// RolesProvider is a component that needs roles of a list watched, for
// example a sort proxy watching its sort and filter roles.
type RolesProvider interface {
	// DynamicRoles returns dotted role names to watch.
	DynamicRoles() []string
}

// RolesReceiver accepts RolesProviders. While at least one provider is
// registered, the union of the providers' roles replaces the static
// item data changed roles.
type RolesReceiver interface {
	AddRolesProvider(p RolesProvider)
	RemoveRolesProvider(p RolesProvider)
	// UpdateDynamicRoles is called by a provider whose roles changed.
	UpdateDynamicRoles()
}

var _ RolesReceiver = (*List)(nil)

// DataRoles returns the exposed role ids.
func (m *List) DataRoles() metadata.RoleSet {
	return m.dataRoles.Clone()
}

// DataRolesSpec returns the exposed role spec.
func (m *List) DataRolesSpec() any {
	return m.dataRolesSpec
}

// SetDataRoles sets the exposed role spec. Before initialization the spec
// is stored and resolved once the item type is known.
func (m *List) SetDataRoles(spec any) error {
	m.dataRolesSpec = spec
	if m.catalog == nil {
		return nil
	}
	return m.applyDataRoles(spec)
}

func (m *List) applyDataRoles(spec any) error {
	ids, err := m.catalog.ParseRoleSpec(spec)
	if err != nil {
		return err
	}
	if ids.Equal(m.dataRoles) && len(m.roleNames) == len(ids)+1 {
		return nil
	}
	m.dataRoles = ids
	m.roleNames = m.catalog.RoleNames(ids)
	m.RoleNamesChanged.Emit(m.RoleNames())
	return nil
}

// RoleNames returns the exposed role names keyed by id, always including
// the item role.
func (m *List) RoleNames() map[metadata.RoleID]string {
	out := make(map[metadata.RoleID]string, len(m.roleNames))
	for id, name := range m.roleNames {
		out[id] = name
	}
	return out
}

// ItemDataChangedRolesSpec returns the static watched role spec.
func (m *List) ItemDataChangedRolesSpec() any {
	return m.changedRolesSpec
}

// ItemDataChangedRoles returns the roles currently watched on every row.
func (m *List) ItemDataChangedRoles() metadata.RoleSet {
	if m.engine == nil {
		return nil
	}
	return m.engine.Watched()
}

// SetItemDataChangedRoles sets the static watched role spec. It is ignored
// for watching while roles providers are registered.
func (m *List) SetItemDataChangedRoles(spec any) error {
	m.changedRolesSpec = spec
	if m.catalog == nil {
		return nil
	}
	ids, err := m.catalog.ParseRoleSpec(spec)
	if err != nil {
		return err
	}
	m.changedRoles = ids
	m.updateWatched()
	return nil
}

// SetItemDataChangedDelay sets when ItemDataChanged fires after a change.
func (m *List) SetItemDataChangedDelay(policy loop.DelayPolicy, delay time.Duration) {
	m.schedule.Policy = policy
	m.schedule.Delay = delay
	m.changed.Timer().SetSchedule(m.schedule)
}

// SetItemDataChangedInterval sets the ItemDataChanged repeat interval.
func (m *List) SetItemDataChangedInterval(d time.Duration) {
	m.schedule.Interval = d
	m.changed.Timer().SetSchedule(m.schedule)
}

// ItemDataChangedSchedule returns the ItemDataChanged delay configuration.
func (m *List) ItemDataChangedSchedule() loop.Schedule {
	return m.schedule
}

// AddRolesProvider registers p and rewatches rows.
func (m *List) AddRolesProvider(p RolesProvider) {
	if p == nil || slices.Contains(m.providers, p) {
		return
	}
	m.providers = append(m.providers, p)
	m.updateWatched()
}

// RemoveRolesProvider unregisters p. Removing the last provider restores
// the static item data changed roles.
func (m *List) RemoveRolesProvider(p RolesProvider) {
	i := slices.Index(m.providers, p)
	if i < 0 {
		return
	}
	m.providers = slices.Delete(m.providers, i, i+1)
	m.updateWatched()
}

// UpdateDynamicRoles recomputes the watched roles.
func (m *List) UpdateDynamicRoles() {
	m.updateWatched()
}

// RolesProviders returns the registered providers.
func (m *List) RolesProviders() []RolesProvider {
	return slices.Clone(m.providers)
}

func (m *List) watchedRoles() metadata.RoleSet {
	if len(m.providers) == 0 {
		return m.changedRoles.Clone()
	}
	var out metadata.RoleSet
	for _, p := range m.providers {
		for _, name := range p.DynamicRoles() {
			role, err := m.catalog.RoleByName(name)
			if err != nil {
				m.logger.Warn("Ignoring unknown dynamic role",
					zap.String("role", name),
					zap.String("type", m.catalog.TypeName()))
				continue
			}
			out = out.Insert(role.ID)
		}
	}
	return out
}

// updateWatched swaps the watched set now and rebinds rows on the next pass.
func (m *List) updateWatched() {
	if m.engine == nil {
		return
	}
	if !m.engine.SetWatched(m.watchedRoles()) {
		return
	}
	if m.reconnect != nil {
		return
	}
	m.reconnect = m.loop.Post("model.reconnect", func() error {
		m.reconnect = nil
		if m.engine != nil {
			m.engine.RebindAll()
		}
		return nil
	})
}
