package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [graph-file]",
	Short: "Run a graph once in-process and print the result",
	Long: `Loads a graph record (JSON or YAML) and runs it synchronously, without the dispatcher.
With no argument the built-in demo-review graph is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		path := codereview.GraphName
		if len(args) > 0 {
			path = args[0]
		}

		input, err := readInput(cmd)
		if err != nil {
			return err
		}

		maxSteps, _ := cmd.Flags().GetInt("max-steps")
		asJSON, _ := cmd.Flags().GetBool("json")
		style, _ := cmd.Flags().GetString("style")

		return runGraph(cmd.Context(), cmd.OutOrStdout(), runOptions{
			path:     path,
			input:    input,
			maxSteps: maxSteps,
			asJSON:   asJSON,
			style:    style,
			engine:   []weft.Option{weft.WithLogger(logger)},
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("input", "i", "", "Run input. Parsed as JSON when valid, used as a string otherwise")
	runCmd.Flags().String("input-file", "", "Read the run input from a file ('-' for stdin)")
	runCmd.Flags().Int("max-steps", 0, "Abort after this many step executions (0 = unbounded)")
	runCmd.Flags().Bool("json", false, "Print the final state as JSON")
	runCmd.Flags().String("style", "", "Markdown style for the report (auto-detected when empty)")
}

type runOptions struct {
	path     string
	input    any
	maxSteps int
	asJSON   bool
	style    string
	engine   []weft.Option
}

func readInput(cmd *cobra.Command) (any, error) {
	raw, _ := cmd.Flags().GetString("input")
	if path, _ := cmd.Flags().GetString("input-file"); path != "" {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		raw = string(data)
	}
	return parseInput(raw), nil
}

// parseInput decodes raw as JSON when it is valid JSON and returns it verbatim otherwise.
func parseInput(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func runGraph(ctx context.Context, w io.Writer, opts runOptions) error {
	engine := weft.New(append(opts.engine, weft.WithMaxSteps(opts.maxSteps))...)
	codereview.Register(engine.Registry())

	def, err := loadGraphFile(opts.path, engine.Registry(), discardLogger())
	if err != nil {
		return err
	}

	state, runErr := engine.Run(ctx, def, opts.input)

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if state == nil {
			state = &domain.State{Status: domain.StatusFailed, Logs: []string{}}
		}
		if err := enc.Encode(state); err != nil {
			return err
		}
		return runErr
	}

	render, err := tui.NewRenderer(opts.style, 100)
	if err != nil {
		return err
	}
	out, err := render(tui.StateMarkdown(def.Name, state, runErr))
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	return runErr
}
