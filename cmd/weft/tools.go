package main

import (
	"fmt"

	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools and conditions",
	Run: func(cmd *cobra.Command, args []string) {
		reg := registry.Default()
		codereview.Register(reg)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Tools:")
		for _, name := range reg.Tools() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		fmt.Fprintln(out, "Conditions:")
		for _, name := range reg.Conditions() {
			fmt.Fprintf(out, "  %s\n", name)
		}
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
