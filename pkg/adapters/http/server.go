package http

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
	mermaid "github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/internal/validator"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the run management surface the server exposes. *dispatch.Dispatcher implements it.
type Service interface {
	CreateGraph(ctx context.Context, rec *codec.Record) (string, error)
	Graph(ctx context.Context, id string) (*graph.Definition, error)
	Graphs(ctx context.Context) ([]string, error)
	Submit(ctx context.Context, graphID string, input any) (*domain.Run, error)
	Get(ctx context.Context, runID string) (*domain.Run, error)
}

var _ Service = (*dispatch.Dispatcher)(nil)

// Server holds the HTTP handlers.
type Server struct {
	svc          Service
	registry     *registry.Registry
	logger       *slog.Logger
	metrics      http.Handler
	pollInterval time.Duration
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

// WithMetricsHandler replaces the /metrics handler (default: promhttp.Handler()).
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithPollInterval sets how often run streams check for updates (default 250ms).
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewHandler creates the HTTP handler for svc. reg is used to list tools and encode graphs.
func NewHandler(svc Service, reg *registry.Registry, opts ...Option) http.Handler {
	s := &Server{
		svc:          svc,
		registry:     reg,
		logger:       logging.NewNop(),
		metrics:      promhttp.Handler(),
		pollInterval: 250 * time.Millisecond,
	}
	if s.registry == nil {
		s.registry = registry.Default()
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/graph/create", s.CreateGraph)
	r.Post("/graph/run", s.RunGraph)
	r.Get("/graph/state/{run_id}", s.GetRunState)
	r.Get("/graph/state/{run_id}/events", s.WatchRun)
	r.Get("/graph", s.ListGraphs)
	r.Get("/graph/{graph_id}", s.GetGraph)
	r.Get("/graph/{graph_id}/mermaid", s.GetGraphDiagram)
	r.Get("/tools", s.ListTools)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createGraphResponse struct {
	GraphID string `json:"graph_id"`
	Message string `json:"message"`
}

type runGraphRequest struct {
	GraphID   string `json:"graph_id"`
	InputData any    `json:"input_data"`
}

type runGraphResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// runState flattens a run record: the state fields at the top level plus run metadata.
type runState struct {
	RunID      string        `json:"run_id"`
	GraphID    string        `json:"graph_id"`
	InputData  any           `json:"input_data"`
	Data       domain.Data   `json:"data"`
	Logs       []string      `json:"logs"`
	Status     domain.Status `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

func newRunState(run *domain.Run) runState {
	rs := runState{
		RunID:      run.ID,
		GraphID:    run.GraphID,
		Status:     run.Status,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if run.State != nil {
		rs.InputData = run.State.InputData
		rs.Data = run.State.Data
		rs.Logs = run.State.Logs
	}
	return rs
}

// CreateGraph handles POST /graph/create.
func (s *Server) CreateGraph(w http.ResponseWriter, r *http.Request) {
	var rec codec.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	id, err := s.svc.CreateGraph(r.Context(), &rec)
	if err != nil {
		s.writeServiceError(w, "CreateGraph", err)
		return
	}
	s.writeJSON(w, http.StatusOK, createGraphResponse{GraphID: id, Message: "Graph created successfully"})
}

// RunGraph handles POST /graph/run. The run executes in the background.
func (s *Server) RunGraph(w http.ResponseWriter, r *http.Request) {
	var body runGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.GraphID == "" {
		s.writeError(w, http.StatusBadRequest, "graph_id is required")
		return
	}

	run, err := s.svc.Submit(r.Context(), body.GraphID, body.InputData)
	if err != nil {
		s.writeServiceError(w, "RunGraph", err)
		return
	}
	s.writeJSON(w, http.StatusOK, runGraphResponse{RunID: run.ID, Status: "submitted"})
}

// GetRunState handles GET /graph/state/{run_id}.
func (s *Server) GetRunState(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Get(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeServiceError(w, "GetRunState", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRunState(run))
}

// WatchRun handles GET /graph/state/{run_id}/events (SSE).
// An event is sent whenever the status or the log length changes; the stream ends
// once the run is terminal.
func (s *Server) WatchRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.svc.Get(r.Context(), runID)
	if err != nil {
		s.writeServiceError(w, "WatchRun", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastStatus domain.Status
	lastLogs := -1
	for {
		logs := 0
		if run.State != nil {
			logs = len(run.State.Logs)
		}
		if run.Status != lastStatus || logs != lastLogs {
			payload, err := json.Marshal(newRunState(run))
			if err != nil {
				s.logger.Error("WatchRun: encode failed", "run_id", runID, "err", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastStatus, lastLogs = run.Status, logs
		}
		if run.Status.IsTerminal() {
			fmt.Fprintf(w, "event: done\ndata: %s\n\n", run.Status)
			flusher.Flush()
			return
		}

		select {
		case <-r.Context().Done():
			s.logger.Debug("WatchRun: client disconnected", "run_id", runID)
			return
		case <-ticker.C:
		}

		if run, err = s.svc.Get(r.Context(), runID); err != nil {
			s.logger.Warn("WatchRun: reload failed", "run_id", runID, "err", err)
			return
		}
	}
}

// ListGraphs handles GET /graph.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Graphs(r.Context())
	if err != nil {
		s.writeServiceError(w, "ListGraphs", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"graphs": ids})
}

// GetGraph handles GET /graph/{graph_id}.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.Graph(r.Context(), chi.URLParam(r, "graph_id"))
	if err != nil {
		s.writeServiceError(w, "GetGraph", err)
		return
	}
	rec, err := codec.Encode(def, s.registry)
	if err != nil {
		s.writeServiceError(w, "GetGraph", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// GetGraphDiagram handles GET /graph/{graph_id}/mermaid, overlaying run_id when given.
func (s *Server) GetGraphDiagram(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.Graph(r.Context(), chi.URLParam(r, "graph_id"))
	if err != nil {
		s.writeServiceError(w, "GetGraphDiagram", err)
		return
	}

	var overlay *mermaid.Overlay
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		run, err := s.svc.Get(r.Context(), runID)
		if err != nil {
			s.writeServiceError(w, "GetGraphDiagram", err)
			return
		}
		overlay = mermaid.OverlayFromState(run.State)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(mermaid.Mermaid(def, overlay)))
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{
		"tools":      s.registry.Tools(),
		"conditions": s.registry.Conditions(),
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "weft-http",
		"version":     strings.TrimSpace(weft.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, detail string) {
	s.writeJSON(w, code, map[string]string{"detail": detail})
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err)
	}

	detail := err.Error()
	switch {
	case errors.Is(err, domain.ErrGraphNotFound):
		detail = "Graph not found"
	case errors.Is(err, domain.ErrRunNotFound):
		detail = "Run ID not found"
	}
	s.writeError(w, code, detail)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrGraphNotFound), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, codec.ErrMalformed),
		errors.Is(err, domain.ErrUnserializable),
		errors.Is(err, domain.ErrReservedName),
		errors.Is(err, validator.ErrInvalidGraph):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, dispatch.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
