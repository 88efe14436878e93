// Command server boots the FluxWeave resource API: it loads configuration,
// wires the event bus, resource store, executor, and trigger engines, then
// runs the whole thing under one engine/service Controller until
// SIGINT/SIGTERM, grounded on the reference binary's load-env ->
// resolve-config -> setup-logger -> run-server ordering
// (cmd/mcp-proxy/main.go), replacing its cobra root command with plain
// flags since a CLI surface is out of scope here.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fluxweave/fluxweave/engine/api"
	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/engine/executor"
	"github.com/fluxweave/fluxweave/engine/service"
	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/fluxweave/fluxweave/engine/trigger"
	"github.com/fluxweave/fluxweave/engine/workflow"
	"github.com/fluxweave/fluxweave/pkg/config"
	"github.com/fluxweave/fluxweave/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "path to a .env file, loaded before config resolution")
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	ctx := context.Background()
	sources := []config.Source{config.NewDefaultProvider(), config.NewEnvProvider("FLUXWEAVE_")}
	if *configFile != "" {
		sources = append(sources, config.NewYAMLProvider(*configFile))
	}
	if err := config.Initialize(ctx, config.NewService(), sources...); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}
	cfg := config.Get()

	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
		TimeFormat: time.RFC3339,
	})
	ctx = logger.ContextWithLogger(ctx, log)

	if err := registerMetrics(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build resource store: %w", err)
	}
	defer closeBackend()

	cached, err := store.NewCached(backend, 1024)
	if err != nil {
		return fmt.Errorf("wrap resource store with cache: %w", err)
	}
	resourceStore := store.NewResourceStore(cached)

	registry := stage.NewRegistry()
	eb := bus.NewEventBus(newBroker(cfg), bus.NewCallbackGroup())

	exec, execService, err := newExecutor(cfg, registry)
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	rt := &workflow.Runtime{
		Loader:           resourceStore,
		ConfigMerger:     resourceStore,
		RunStore:         resourceStore,
		Bus:              eb,
		Registry:         registry,
		Executor:         exec,
		ExecutorName:     cfg.Executor.Kind,
		RunRetention:     cfg.Store.RunRetention,
		Strategy:         workflow.StrategyGroupByGroup,
		DefaultNamespace: store.DefaultNamespace,
	}
	rt.RegisterBusCallback()

	actions := trigger.NewActionRegistry()
	trigger.RegisterDefaultActions(actions, eb)
	conditionEngine, err := trigger.NewConditionEngine()
	if err != nil {
		return fmt.Errorf("build condition engine: %w", err)
	}
	watcher := trigger.NewConditionWatcher(conditionEngine, resourceStore, actions)
	scheduleEngine := trigger.NewScheduleEngine(resourceStore, actions, cfg.Trigger.ScheduleTickInterval)

	ctl := service.NewController()
	if err := ctl.Register(&service.ConditionWatcherService{Watcher: watcher, Bus: eb}); err != nil {
		return err
	}
	if err := ctl.Register(&service.ScheduleService{Engine: scheduleEngine}); err != nil {
		return err
	}
	if err := ctl.Register(execService); err != nil {
		return err
	}

	deps := &api.Dependencies{Store: resourceStore, Runtime: rt, Controller: ctl}
	router := api.NewRouter(deps, "/api/v0")
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := ctl.Register(&service.HTTPService{Server: httpServer}); err != nil {
		return err
	}

	// BusService must be registered last: every Service above that
	// subscribes a bus callback in Startup needs to run before
	// BusService.Startup connects the broker (engine/service/adapters.go).
	if err := ctl.Register(&service.BusService{Bus: eb}); err != nil {
		return err
	}

	return ctl.Run(ctx)
}

func registerMetrics() error {
	if err := workflow.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	return bus.RegisterMetrics(prometheus.DefaultRegisterer)
}

// newBackend selects the resource store backend per cfg.Store.Kind
// (spec §4.8), already validated to be "memory" or "postgres" by
// pkg/config's Service.Validate.
func newBackend(ctx context.Context, cfg *config.Config) (store.BaseStorage, func(), error) {
	switch cfg.Store.Kind {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DSN.Value())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store.NewPostgres(pool), func() { pool.Close() }, nil
	default:
		mem := store.NewMemory()
		return mem, func() {}, nil
	}
}

// newBroker selects the event bus broker per cfg.Broker.Kind (spec §4.5),
// already validated to be "memory" or "nats".
func newBroker(cfg *config.Config) bus.Broker {
	if cfg.Broker.Kind == "nats" {
		return bus.NewNATSBroker(cfg.Broker.URL.Value())
	}
	return bus.NewMemoryBroker(256)
}

// newExecutor selects the stage executor per cfg.Executor.Kind (spec
// §4.4): Local's cluster memory lives behind a Unix-socket IPC server,
// Distributed's lives in Redis. Both variants' Start/Close lifecycle runs
// through the same ExecutorService.
func newExecutor(cfg *config.Config, registry *stage.Registry) (stage.Executor, service.Service, error) {
	if cfg.Executor.Kind == "distributed" {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Executor.RedisURL.Value(),
			DialTimeout: cfg.Executor.DialTimeout,
		})
		dist := executor.NewDistributed(executor.DistributedConfig{
			Workers:  cfg.Executor.Workers,
			Registry: registry,
			Client:   client,
		})
		return dist, &service.ExecutorService{Executor: dist}, nil
	}
	socket := cfg.Executor.ClusterMemorySocket
	if socket == "" {
		socket = filepath.Join(os.TempDir(), fmt.Sprintf("fluxweave-cm-%d.sock", os.Getpid()))
	}
	local := executor.NewLocal(executor.LocalConfig{
		Workers:             cfg.Executor.Workers,
		ClusterMemorySocket: socket,
		Registry:            registry,
	})
	return local, &service.ExecutorService{Executor: local}, nil
}
