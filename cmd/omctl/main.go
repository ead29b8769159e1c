package main

import (
	"os"

	"github.com/conduit-lang/objectmodel/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
