package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectmodel/internal/cli/config"
	"github.com/conduit-lang/objectmodel/internal/cli/ui"
	"github.com/conduit-lang/objectmodel/runtime/filter"
	"github.com/conduit-lang/objectmodel/runtime/settings"
)

// NewSettingsCommand creates the settings command
func NewSettingsCommand() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write the settings backend",
		Long: `Read and write values in the settings backend selected by the
settings section of objectmodel.yml. Keys are slash separated, for example
items/objectName0/name as written by "omctl serve --persist".`,
	}
	cmd.PersistentFlags().StringVarP(&group, "group", "g", "", "Key group to work in")

	open := func(cmd *cobra.Command) (*settings.Settings, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logger, err := newLogger()
		if err != nil {
			return nil, err
		}
		store, err := settings.Open(cmd.Context(), cfg.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings: %w", err)
		}
		s := settings.New(store, settings.WithLogger(logger))
		s.BeginGroup(group)
		return s, nil
	}

	cmd.AddCommand(newSettingsGetCommand(open))
	cmd.AddCommand(newSettingsSetCommand(open))
	cmd.AddCommand(newSettingsListCommand(open))
	cmd.AddCommand(newSettingsDeleteCommand(open))

	return cmd
}

type openSettings func(cmd *cobra.Command) (*settings.Settings, error)

// withSettings opens the settings, runs fn and closes them again.
func withSettings(cmd *cobra.Command, open openSettings, fn func(ctx context.Context, s *settings.Settings) error) (err error) {
	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close settings: %w", cerr)
		}
	}()
	return fn(cmd.Context(), s)
}

func newSettingsGetCommand(open openSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, open, func(ctx context.Context, s *settings.Settings) error {
				v, err := s.Lookup(ctx, args[0])
				if errors.Is(err, settings.ErrKeyNotFound) {
					keys, _ := s.Keys(ctx)
					return &formattedError{
						message: ui.SettingNotFoundError(s.Key(args[0]), ui.FindSimilar(args[0], keys, nil), noColor),
						err:     err,
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(open openSettings) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Long: `Store a value. Numbers and booleans are stored typed unless --string
is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, open, func(ctx context.Context, s *settings.Settings) error {
				var value any = args[1]
				if !raw {
					value = filter.ParseValue(args[1])
				}
				if err := s.SetValue(ctx, args[0], value); err != nil {
					return err
				}
				if err := s.Sync(ctx); err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s = %v", s.Key(args[0]), value), noColor)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "string", false, "Store the value as a string")
	return cmd
}

func newSettingsListCommand(open openSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List stored keys and values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, open, func(ctx context.Context, s *settings.Settings) error {
				if len(args) == 1 {
					s.BeginGroup(args[0])
				}
				keys, err := s.Keys(ctx)
				if err != nil {
					return err
				}
				table := ui.NewKeyValueTable(cmd.OutOrStdout(), noColor)
				for _, key := range keys {
					v, err := s.Lookup(ctx, key)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", s.Key(key), err)
					}
					table.AddRow(s.Key(key), v)
				}
				table.Render()
				return nil
			})
		},
	}
}

func newSettingsDeleteCommand(open openSettings) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored value",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, open, func(ctx context.Context, s *settings.Settings) error {
				if err := s.Remove(ctx, args[0]); err != nil {
					return err
				}
				if err := s.Sync(ctx); err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), "removed "+s.Key(args[0]), noColor)
				return nil
			})
		},
	}
}
