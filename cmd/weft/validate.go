package main

import (
	"fmt"
	"io"

	"github.com/aretw0/weft/internal/validator"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph-file>",
	Short: "Check a graph record for consistency",
	Long: `Decodes a graph record and checks it against the registered tools and conditions.
Reports dropped conditional edges and steps unreachable from the entry point.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.Default()
		codereview.Register(reg)
		return validateFile(cmd.OutOrStdout(), args[0], reg)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateFile(w io.Writer, path string, reg *registry.Registry) error {
	data, err := readGraphBytes(path, reg)
	if err != nil {
		return err
	}

	def, warnings, err := codec.Load(data, reg, discardLogger())
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if err := validator.ValidateGraph(def, reg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	for _, step := range validator.UnreachableSteps(def) {
		fmt.Fprintf(w, "warning: step '%s' is unreachable from '%s'\n", step, def.EntryPoint)
	}
	if len(warnings) > 0 {
		return fmt.Errorf("validation failed: %d conditional edge(s) reference unregistered conditions", len(warnings))
	}

	fmt.Fprintf(w, "Graph %s is valid (%d steps).\n", def.Name, len(def.Steps))
	return nil
}
