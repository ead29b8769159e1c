package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectmodel/runtime/filter"
)

// NewFilterCommand creates the filter command
func NewFilterCommand() *cobra.Command {
	var (
		opts     viewOptions
		sortRole string
		invert   bool
	)

	cmd := &cobra.Command{
		Use:   "filter <role> <op> <value>",
		Short: "Filter sample items by a role value",
		Long: `Build a list of sample items, filter it through a proxy and print the
rows that pass.

Operators:
  ==, !=, <, <=, >, >=     compare with the value
  in                       value is one of a comma separated list
  contains                 case insensitive substring
  matches                  regular expression
  inside, outside,
  inside_or_equal,
  outside_or_equal         range given as from..to
  notnull                  the role holds a non-nil object (value ignored)`,
		Example: `  omctl filter id '>=' 2
  omctl filter id in 1,3
  omctl filter coord.x inside_or_equal 0..1 --sort name
  omctl filter coord.type notnull -`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filter.Parse(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			f.SetInverted(invert)
			opts.filter = f
			if sortRole != "" {
				opts.sortRoles = []string{sortRole}
			}
			return runView(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", 5, "Number of sample items")
	cmd.Flags().StringVarP(&sortRole, "sort", "s", "", "Sort the accepted rows by this role")
	cmd.Flags().BoolVar(&opts.descending, "desc", false, "Sort in descending order")
	cmd.Flags().BoolVar(&invert, "invert", false, "Keep the rows the filter rejects")

	return cmd
}
