package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectmodel/internal/cli/ui"
	"github.com/conduit-lang/objectmodel/internal/sample"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
)

// NewCatalogCommand creates the catalog command
func NewCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [type]",
		Short: "Print the role catalog of a node type",
		Long: fmt.Sprintf(`Print every role of a node type with its id, kind, change notifier
and the roles that change along with it.

Available types: %s`, strings.Join(sample.TypeNames(), ", ")),
		Example: `  omctl catalog
  omctl catalog Coord`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName := "Item"
			if len(args) == 1 {
				typeName = args[0]
			}
			catalog, err := catalogFor(typeName)
			if err != nil {
				return err
			}
			printCatalog(cmd, catalog)
			return nil
		},
	}
}

func printCatalog(cmd *cobra.Command, catalog *metadata.RoleCatalog) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d roles)\n\n", catalog.TypeName(), catalog.Len())

	table := ui.NewTable(out, noColor, "ID", "ROLE", "KIND", "NOTIFIER", "INHERITED", "DEPENDENTS")
	for _, role := range catalog.Roles() {
		notifier := "-"
		if role.Notifier != metadata.NoNotifier {
			if n := catalog.Notifier(role.Notifier); n != nil {
				notifier = n.Signal
			}
		}
		deps := make([]string, 0, len(role.DependentRoleIDs))
		for _, id := range role.DependentRoleIDs {
			deps = append(deps, fmt.Sprint(int(id)))
		}
		table.AddRow(int(role.ID), role.Name, role.Kind, notifier, role.Inherited, strings.Join(deps, " "))
	}
	table.Render()
}
