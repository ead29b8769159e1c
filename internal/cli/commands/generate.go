package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/internal/cli/ui"
	"github.com/conduit-lang/objectmodel/internal/gen"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	var (
		outPath string
		pkgName string
	)

	cmd := &cobra.Command{
		Use:     "generate <file.proto>...",
		Aliases: []string{"gen"},
		Short:   "Generate node types from protobuf messages",
		Long: `Read protobuf message and enum definitions and write Go node types
for the object model.

Every message becomes a struct embedding object.Base. Its fields carry
om tags with a <field>Changed notify signal, and each field gets a
Set<Field> method that emits that signal followed by the bare changed
signal. Enums become int32 types with a String method.

Field types may refer to messages and enums of any of the given files
and to google.protobuf.Timestamp and google.protobuf.Duration.`,
		Example: `  omctl generate schema/items.proto
  omctl generate -o models/items_om.go -p models schema/*.proto

  //go:generate go run github.com/conduit-lang/objectmodel/cmd/omgen -o items_om.go items.proto`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			schema, err := gen.Parse(args...)
			if err != nil {
				return err
			}
			logger.Debug("parsed proto files",
				zap.Strings("files", schema.Files),
				zap.Int("messages", len(schema.Messages)),
				zap.Int("enums", len(schema.Enums)))

			src, err := gen.NewGenerator(pkgName).Generate(schema)
			if err != nil {
				return err
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			if err := os.WriteFile(outPath, src, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			ui.WriteSuccess(cmd.ErrOrStderr(),
				fmt.Sprintf("Generated %d node types and %d enums into %s", len(schema.Messages), len(schema.Enums), outPath),
				noColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVarP(&pkgName, "package", "p", "", "Go package name (default derived from the proto package)")

	return cmd
}
