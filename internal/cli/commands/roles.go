package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectmodel/internal/cli/ui"
	"github.com/conduit-lang/objectmodel/runtime/metadata"
)

// askRoleSpec prompts for a role spec. Tests replace it.
var askRoleSpec = func(catalog *metadata.RoleCatalog) (string, error) {
	names := make([]string, 0, catalog.Len())
	for name := range catalog.RoleIDs() {
		names = append(names, name)
	}
	sort.Strings(names)

	var spec string
	prompt := &survey.Input{
		Message: fmt.Sprintf("Role spec for %s:", catalog.TypeName()),
		Help:    "A dotted role name, a wildcard such as coord* or */aon, or several separated by commas",
		Suggest: func(toComplete string) []string {
			var out []string
			for _, name := range names {
				if strings.HasPrefix(name, toComplete) {
					out = append(out, name)
				}
			}
			return out
		},
	}
	if err := survey.AskOne(prompt, &spec, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return spec, nil
}

// NewRolesCommand creates the roles command
func NewRolesCommand() *cobra.Command {
	var (
		typeName    string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "roles [spec]",
		Short: "Resolve a role spec to role ids",
		Long: `Resolve a role spec against a node type and print the selected roles.

A spec is a dotted role name (coord.x), a wildcard prefix (coord*) or a
wildcard with flags (*/aon). Flags: a all, aon all and object names,
i inherited, o own, on object names. Several specs are separated by commas.`,
		Example: `  omctl roles 'coord*'
  omctl roles 'name,coord.type.type'
  omctl roles --type Coord '*/aon'
  omctl roles --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := catalogFor(typeName)
			if err != nil {
				return err
			}

			var spec string
			switch {
			case len(args) == 1:
				spec = args[0]
			case interactive:
				spec, err = askRoleSpec(catalog)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("role spec required (pass one or use --interactive)")
			}

			ids, err := catalog.ParseRoleSpec(splitSpec(spec))
			if err != nil {
				return roleError(catalog, err)
			}

			table := ui.NewTable(cmd.OutOrStdout(), noColor, "ID", "ROLE", "EXPOSED", "KIND")
			for _, id := range ids {
				role, err := catalog.Role(id)
				if err != nil {
					return err
				}
				table.AddRow(int(id), role.Name, metadata.CamelCase(role.Name), role.Kind)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "Item", "Node type to resolve against")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for the role spec")

	return cmd
}

// splitSpec turns "a, b" into a list spec.
func splitSpec(spec string) any {
	if !strings.Contains(spec, ",") {
		return strings.TrimSpace(spec)
	}
	parts := strings.Split(spec, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
