package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/internal/cli/config"
	"github.com/conduit-lang/objectmodel/internal/cli/ui"
	"github.com/conduit-lang/objectmodel/internal/sample"
	"github.com/conduit-lang/objectmodel/runtime/loop"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
	"github.com/conduit-lang/objectmodel/runtime/model"
	"github.com/conduit-lang/objectmodel/runtime/proxy"
)

// maxPasses bounds drain when coalesced signals keep re-arming.
const maxPasses = 100

// catalogFor returns the role catalog of a sample type.
func catalogFor(typeName string) (*metadata.RoleCatalog, error) {
	t, ok := sample.Type(typeName)
	if !ok {
		suggestions := ui.FindSimilar(typeName, sample.TypeNames(), nil)
		return nil, &formattedError{
			message: ui.TypeNotFoundError(typeName, suggestions, noColor),
			err:     fmt.Errorf("unknown type %q", typeName),
		}
	}
	return metadata.Lookup(t)
}

// roleError decorates a role lookup failure with suggestions.
func roleError(catalog *metadata.RoleCatalog, err error) error {
	var re metadata.RoleError
	if !errors.As(err, &re) {
		return err
	}
	names := make([]string, 0, catalog.Len())
	for name := range catalog.RoleIDs() {
		names = append(names, name)
	}
	sort.Strings(names)
	return &formattedError{
		message: ui.RoleNotFoundError(catalog.TypeName(), re.Role, ui.FindSimilar(re.Role, names, nil), noColor),
		err:     err,
	}
}

// sampleModel is a list of sample items behind a sort/filter proxy, driven
// by a private loop.
type sampleModel struct {
	loop  *loop.Loop
	list  *model.List
	proxy *proxy.SortFilter
	items []*sample.Item
}

func newSampleModel(cfg *config.Config, count int, logger *zap.Logger) (*sampleModel, error) {
	if count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", count)
	}
	lp := loop.New(loop.WithLogger(logger))

	opts, err := cfg.Model.ListOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, model.WithLoop(lp), model.WithLogger(logger), model.WithItemType(metadata.TypeOf[*sample.Item]()))
	list := model.New(opts...)

	items := sample.Items(count)
	if err := list.AppendAll(sample.Objects(items)...); err != nil {
		return nil, fmt.Errorf("failed to populate list: %w", err)
	}

	p := proxy.New(proxy.WithLoop(lp), proxy.WithLogger(logger))
	p.SetSource(list)
	return &sampleModel{loop: lp, list: list, proxy: p, items: items}, nil
}

// drain runs loop passes until no work is left.
func (m *sampleModel) drain() {
	for i := 0; i < maxPasses && m.loop.ProcessEvents() > 0; i++ {
	}
}

func (m *sampleModel) close() {
	m.proxy.Close()
	m.list.Close()
}

// printRows renders the proxy rows with their source row and value roles.
func (m *sampleModel) printRows(w io.Writer) {
	catalog := m.list.Catalog()
	roles := catalog.ParseRoles(metadata.AllRoles)

	headers := []string{"ROW", "SOURCE"}
	var shown []*metadata.RoleInfo
	for _, id := range roles {
		role, err := catalog.Role(id)
		if err != nil || role.IsObject() {
			continue
		}
		shown = append(shown, role)
		headers = append(headers, role.Name)
	}

	table := ui.NewTable(w, noColor, headers...)
	for row := 0; row < m.proxy.Len(); row++ {
		cells := []any{row, m.proxy.MapToSource(row)}
		for _, role := range shown {
			value, _ := m.proxy.Data(row, role.ID)
			cells = append(cells, value)
		}
		table.AddRow(cells...)
	}
	table.Render()
}
