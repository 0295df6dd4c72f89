package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// Service is the run management surface exposed as MCP tools. *dispatch.Dispatcher implements it.
type Service interface {
	CreateGraph(ctx context.Context, rec *codec.Record) (string, error)
	Graph(ctx context.Context, id string) (*graph.Definition, error)
	Graphs(ctx context.Context) ([]string, error)
	Submit(ctx context.Context, graphID string, input any) (*domain.Run, error)
	Get(ctx context.Context, runID string) (*domain.Run, error)
}

var _ Service = (*dispatch.Dispatcher)(nil)

// RunResponse is the structured result of run_graph and get_run.
type RunResponse struct {
	RunID   string        `json:"run_id" jsonschema_description:"Identifier of the run"`
	GraphID string        `json:"graph_id" jsonschema_description:"Graph the run executes"`
	Status  domain.Status `json:"status" jsonschema_description:"SUBMITTED, RUNNING, COMPLETED or FAILED"`
	Data    domain.Data   `json:"data,omitempty" jsonschema_description:"Values produced by the steps"`
	Logs    []string      `json:"logs" jsonschema_description:"Ordered execution trace"`
	Error   string        `json:"error,omitempty" jsonschema_description:"Failure cause, when FAILED"`
}

func newRunResponse(run *domain.Run) RunResponse {
	resp := RunResponse{RunID: run.ID, GraphID: run.GraphID, Status: run.Status, Error: run.Error}
	if run.State != nil {
		resp.Data = run.State.Data
		resp.Logs = run.State.Logs
	}
	return resp
}

// Server exposes a Service as an MCP server.
type Server struct {
	svc          Service
	registry     *registry.Registry
	logger       *slog.Logger
	pollInterval time.Duration
	mcpServer    *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval sets how often run_graph checks a run it waits on (default 100ms).
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		registry:     reg,
		logger:       logging.NewNop(),
		pollInterval: 100 * time.Millisecond,
		mcpServer:    server.NewMCPServer("weft-mcp", strings.TrimSpace(weft.Version)),
	}
	if s.registry == nil {
		s.registry = registry.Default()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("run_graph",
		mcp.WithDescription("Submit a run of a stored graph. Optionally wait for it to finish."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("Identifier of the graph to run")),
		mcp.WithString("input_data", mcp.Description("Run input. Parsed as JSON when valid, passed as a plain string otherwise")),
		mcp.WithBoolean("wait", mcp.Description("Block until the run is COMPLETED or FAILED")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Maximum wait when wait is set (default 30)")),
		mcp.WithOutputSchema[RunResponse](),
	), s.handleRunGraph)

	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get the status, data and logs of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Identifier returned by run_graph")),
		mcp.WithOutputSchema[RunResponse](),
	), s.handleGetRun)

	s.mcpServer.AddTool(mcp.NewTool("create_graph",
		mcp.WithDescription("Store a graph definition and return its id."),
		mcp.WithString("definition", mcp.Required(), mcp.Description("Graph record as JSON or YAML (name, nodes, edges, conditional_edges, entry_point)")),
	), s.handleCreateGraph)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a stored graph definition."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("Identifier of the graph")),
	), s.handleGetGraph)

	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List stored graph ids."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.svc.Graphs(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return jsonResult(map[string][]string{"graphs": ids})
	})

	s.mcpServer.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List registered tools and conditions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.catalog())
	})
}

func (s *Server) catalog() map[string][]string {
	return map[string][]string{
		"tools":      s.registry.Tools(),
		"conditions": s.registry.Conditions(),
	}
}

func (s *Server) handleRunGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID, err := request.RequireString("graph_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := s.svc.Submit(ctx, graphID, parseInput(request.GetString("input_data", "")))
	if err != nil {
		s.logger.Warn("MCP run_graph: submit rejected", "graph_id", graphID, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}

	if request.GetBool("wait", false) {
		timeout := time.Duration(request.GetFloat("timeout_seconds", 30) * float64(time.Second))
		if run, err = s.await(ctx, run.ID, timeout); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %s: %v", run.ID, err)), nil
		}
	}
	return structuredResult(newRunResponse(run))
}

// await polls runID until it is terminal. On timeout it returns the last seen record.
func (s *Server) await(ctx context.Context, runID string, timeout time.Duration) (*domain.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		run, err := s.svc.Get(ctx, runID)
		if err != nil {
			return &domain.Run{ID: runID}, err
		}
		if run.Status.IsTerminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("still %s: %w", run.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	run, err := s.svc.Get(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	return structuredResult(newRunResponse(run))
}

func (s *Server) handleCreateGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("definition")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := codec.Unmarshal([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.CreateGraph(ctx, rec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create failed: %v", err)), nil
	}
	return jsonResult(map[string]string{"graph_id": id, "message": "Graph created successfully"})
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID, err := request.RequireString("graph_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, err := s.svc.Graph(ctx, graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	rec, err := codec.Encode(def, s.registry)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("weft://tools", "Registered tools and conditions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.catalog())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "weft://tools",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func structuredResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(v, string(data)), nil
}
