package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/weft/internal/logging"
	mermaid "github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [graph-file]",
	Short: "Export a graph as a Mermaid diagram or a record",
	Long: `Outputs a Mermaid flowchart (graph TD) of the graph, or re-encodes it as a JSON or YAML
record with --format. With no argument the built-in demo-review graph is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := codereview.GraphName
		if len(args) > 0 {
			path = args[0]
		}

		reg := registry.Default()
		codereview.Register(reg)

		def, err := loadGraphFile(path, reg, discardLogger())
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "mermaid", "":
			fmt.Fprint(cmd.OutOrStdout(), mermaid.Mermaid(def, nil))
			return nil
		default:
			data, err := codec.Dump(def, reg, codec.Format(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid, json or yaml")
}

// readGraphBytes returns the raw record at path, or the encoded demo graph.
func readGraphBytes(path string, reg *registry.Registry) ([]byte, error) {
	if path == codereview.GraphName {
		return codec.Dump(codereview.Definition(), reg, codec.FormatJSON)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	return data, nil
}

func discardLogger() *slog.Logger {
	return logging.NewNop()
}
