package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/weft/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve graphs and runs to MCP clients",
	Long: `Starts the run dispatcher and exposes it through the Model Context Protocol:
agents can create graphs, submit runs and wait for their results.

Transports:
  stdio  JSON-RPC over standard input/output, for clients that spawn weft (default)
  sse    Server-Sent Events over HTTP on --port, for remote clients`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.preload(ctx); err != nil {
			return err
		}
		if err := a.dispatcher.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			_ = a.dispatcher.Stop(stopCtx)
		}()

		srv := mcp.NewServer(a.dispatcher, a.registry, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			// stdout carries JSON-RPC
			log.SetOutput(os.Stderr)
			logger.Info("mcp server ready", "transport", transport)
			return srv.ServeStdio()
		case "sse":
			addr := fmt.Sprintf(":%d", port)
			logger.Info("mcp server ready", "transport", transport, "addr", addr)
			return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port))
		default:
			return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "MCP transport: stdio or sse")
	mcpCmd.Flags().Int("port", 8080, "SSE listen port")
}
