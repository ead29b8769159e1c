package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectmodel/internal/cli/config"
	"github.com/conduit-lang/objectmodel/runtime/filter"
	"github.com/conduit-lang/objectmodel/runtime/proxy"
)

// viewOptions are shared by sort and filter.
type viewOptions struct {
	count      int
	sortRoles  []string
	descending bool
	filter     *filter.Filter
}

// NewSortCommand creates the sort command
func NewSortCommand() *cobra.Command {
	var opts viewOptions

	cmd := &cobra.Command{
		Use:   "sort <role>...",
		Short: "Sort sample items by one or more roles",
		Long: `Build a list of sample items, sort it through a proxy by the given
roles and print the resulting order. Later roles break ties of earlier ones.`,
		Example: `  omctl sort name
  omctl sort coord.x name --desc
  omctl sort coord.type.type --count 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sortRoles = args
			return runView(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", 5, "Number of sample items")
	cmd.Flags().BoolVar(&opts.descending, "desc", false, "Sort in descending order")

	return cmd
}

func runView(cmd *cobra.Command, opts viewOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, err := newSampleModel(cfg, opts.count, logger)
	if err != nil {
		return err
	}
	defer m.close()

	catalog := m.list.Catalog()
	for _, role := range opts.sortRoles {
		if _, err := catalog.RoleByName(role); err != nil {
			return roleError(catalog, err)
		}
	}
	if opts.filter != nil {
		for _, role := range opts.filter.Roles() {
			if _, err := catalog.RoleByName(role); err != nil {
				return roleError(catalog, err)
			}
		}
	}

	if opts.descending {
		m.proxy.SetSortOrder(proxy.Descending)
	}
	if len(opts.sortRoles) > 0 {
		m.proxy.SetSortRoles(opts.sortRoles...)
	}
	m.proxy.SetFilter(opts.filter)
	m.drain()

	m.printRows(cmd.OutOrStdout())
	return nil
}
