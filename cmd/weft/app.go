package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/pkg/adapters/file"
	"github.com/aretw0/weft/pkg/adapters/memory"
	redisadapter "github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/codec"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/aretw0/weft/pkg/workflows/codereview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app wires the engine, stores and dispatcher from configuration.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	engine     *weft.Engine
	dispatcher *dispatch.Dispatcher
	metrics    *prometheus.Registry
	closers    []func() error
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	reg := registry.Default()
	codereview.Register(reg)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(promReg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	engine := weft.New(
		weft.WithRegistry(reg),
		weft.WithLogger(logger),
		weft.WithMaxSteps(cfg.Engine.MaxSteps),
		weft.WithLifecycleHooks(observability.MergeHooks(metrics.Hooks(), observability.LoggingHooks(logger))),
	)

	a := &app{cfg: cfg, logger: logger, registry: reg, engine: engine, metrics: promReg}

	defs, runs, locker, err := a.openStores()
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	runs, err = protect(runs, cfg.Store)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.dispatcher = dispatch.New(defs, runs, engine, reg,
		dispatch.WithWorkers(cfg.Dispatch.Workers),
		dispatch.WithQueueSize(cfg.Dispatch.QueueSize),
		dispatch.WithRateLimit(cfg.Dispatch.RateLimit, cfg.Dispatch.Burst),
		dispatch.WithLocker(locker, cfg.Dispatch.LockTTL),
		dispatch.WithLogger(logger),
	)
	if err := observability.RegisterQueueDepth(promReg, a.dispatcher.QueueDepth); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *app) openStores() (ports.DefinitionStore, ports.RunStore, ports.DistributedLocker, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.BackendRedis:
		client := redisadapter.NewClient(sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		a.closers = append(a.closers, client.Close)
		a.logger.Info("using redis store", "addr", sc.RedisAddr, "db", sc.RedisDB)
		return redisadapter.NewDefinitionStore(client, redisadapter.WithPrefix(sc.RedisPrefix)),
			redisadapter.NewRunStore(client, redisadapter.WithPrefix(sc.RedisPrefix), redisadapter.WithTTL(sc.RunTTL)),
			redisadapter.NewLocker(client, sc.RedisPrefix),
			nil
	case config.BackendFile:
		a.logger.Info("using file store", "dir", sc.Dir)
		return file.NewDefinitionStore(filepath.Join(sc.Dir, "graphs"), ".json"),
			file.NewRunStore(filepath.Join(sc.Dir, "runs")),
			memory.NewLocker(),
			nil
	case config.BackendMemory:
		return memory.NewDefinitionStore(), memory.NewRunStore(), memory.NewLocker(), nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// protect wraps runs with the redaction and encryption middleware the store
// configuration asks for. Redaction runs first so masked values are what gets sealed.
func protect(runs ports.RunStore, sc config.StoreConfig) (ports.RunStore, error) {
	var mws []middleware.Middleware
	if len(sc.RedactKeys) > 0 {
		mw, err := middleware.NewRedaction(sc.RedactKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	active, fallback, err := sc.EncryptionKeys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mw, err := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(runs, mws...), nil
}

// preload stores the demo graph and every graph file listed in the configuration.
func (a *app) preload(ctx context.Context) error {
	if err := a.dispatcher.PutGraph(ctx, codereview.GraphName, codereview.Definition()); err != nil {
		return err
	}
	a.logger.Info("loaded graph", "graph_id", codereview.GraphName)

	for _, path := range a.cfg.Graphs {
		def, err := loadGraphFile(path, a.registry, a.logger)
		if err != nil {
			return err
		}
		id := graphIDFromPath(path)
		if err := a.dispatcher.PutGraph(ctx, id, def); err != nil {
			return fmt.Errorf("failed to store %s: %w", path, err)
		}
		a.logger.Info("loaded graph", "graph_id", id, "path", path)
	}
	return nil
}

// Close releases store connections.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func graphIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadGraphFile reads a graph record file. The name codereview.GraphName resolves to the
// built-in demo graph.
func loadGraphFile(path string, reg *registry.Registry, logger *slog.Logger) (*graph.Definition, error) {
	if path == codereview.GraphName {
		return codereview.Definition(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	def, warnings, err := codec.Load(data, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	for _, w := range warnings {
		logger.Warn("graph loaded with dropped edge", "path", path, "warning", w.String())
	}
	return def, nil
}
