// Command omgen generates object model node types from .proto files. It is
// the generate command of omctl packaged for go:generate directives.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/conduit-lang/objectmodel/internal/cli/commands"
)

func main() {
	cmd := commands.NewGenerateCommand()
	cmd.Use = "omgen <file.proto>..."
	cmd.Aliases = nil
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
