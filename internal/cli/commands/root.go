package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	verbose bool
	noColor bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "omctl",
		Short: "Inspect, sort, filter and serve reflection-driven list models",
		Long: color.CyanString(`omctl - object model tooling

omctl works on the sample node types shipped with the object model:
an Item with a nested Coord and CoordType.

Features:
  • Role catalogs built from struct tags
  • Role specs with wildcards and flags
  • Sorted and filtered proxies
  • A websocket feed of a live list model
  • Persistent settings in a file, redis, sqlite or postgres
  • Node types generated from protobuf messages`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCatalogCommand())
	rootCmd.AddCommand(NewRolesCommand())
	rootCmd.AddCommand(NewSortCommand())
	rootCmd.AddCommand(NewFilterCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewSettingsCommand())
	rootCmd.AddCommand(NewGenerateCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the omctl version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "omctl version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var formatted *formattedError
		if errors.As(err, &formatted) {
			fmt.Fprint(rootCmd.ErrOrStderr(), formatted.message)
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// newLogger returns a development logger with --verbose and a no-op
// logger otherwise.
func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// formattedError carries a message already rendered by the ui package.
type formattedError struct {
	message string
	err     error
}

func (e *formattedError) Error() string {
	return e.err.Error()
}

func (e *formattedError) Unwrap() error {
	return e.err
}
