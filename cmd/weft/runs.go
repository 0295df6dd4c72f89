package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List stored runs or show one",
	Long: `Reads runs from the configured store. Only the file and redis backends persist runs
across processes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		asJSON, _ := cmd.Flags().GetBool("json")
		style, _ := cmd.Flags().GetString("style")
		if len(args) == 0 {
			return listRuns(cmd.Context(), cmd.OutOrStdout(), a)
		}
		return showRun(cmd.Context(), cmd.OutOrStdout(), a, args[0], asJSON, style)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Bool("json", false, "Print the run as JSON")
	runsCmd.Flags().String("style", "", "Markdown style for the report (auto-detected when empty)")
}

func listRuns(ctx context.Context, w io.Writer, a *app) error {
	ids, err := a.dispatcher.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		run, err := a.dispatcher.Get(ctx, id)
		if err != nil {
			a.logger.Warn("skipping unreadable run", "run_id", id, "err", err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", run.ID, run.GraphID, run.Status)
	}
	return nil
}

func showRun(ctx context.Context, w io.Writer, a *app, id string, asJSON bool, style string) error {
	run, err := a.dispatcher.Get(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	render, err := tui.NewRenderer(style, 100)
	if err != nil {
		return err
	}
	out, err := render(tui.RunMarkdown(run))
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	return nil
}
