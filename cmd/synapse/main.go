package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/synapse/internal/config"
	"github.com/agenthands/synapse/internal/driver"
	"github.com/agenthands/synapse/internal/llm"
	"github.com/agenthands/synapse/internal/memory"
	"github.com/agenthands/synapse/internal/pipeline"
	"github.com/agenthands/synapse/internal/prompt"
	"github.com/agenthands/synapse/internal/queue"
	"github.com/agenthands/synapse/internal/researcher"
	"github.com/agenthands/synapse/internal/server"
	"github.com/agenthands/synapse/internal/switchboard"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("synapse exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("synapse stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func run(ctx context.Context, cfg *config.Config) error {
	d, err := driver.NewBoltDriver(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
	if err != nil {
		return fmt.Errorf("connect graph: %w", err)
	}
	defer d.Close(context.Background())

	if err := d.BuildIndices(ctx); err != nil {
		return fmt.Errorf("build indices: %w", err)
	}

	transport, err := queue.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connect queue transport: %w", err)
	}
	defer transport.Close()

	queueNames := []string{
		cfg.Queues.Incoming, cfg.Queues.Brain, cfg.Queues.Analyst,
		cfg.Queues.Coordinator, cfg.Queues.Responder, cfg.Queues.Outgoing,
		cfg.Queues.Enrichment,
	}
	if err := transport.Ensure(ctx, queueNames...); err != nil {
		return fmt.Errorf("ensure queues: %w", err)
	}

	primary, err := llm.NewProvider(ctx, cfg.Primary)
	if err != nil {
		return fmt.Errorf("init primary provider: %w", err)
	}
	fallback, err := llm.NewProvider(ctx, cfg.Fallback)
	if err != nil {
		return fmt.Errorf("init fallback provider: %w", err)
	}
	fast, err := llm.NewProvider(ctx, cfg.Fast)
	if err != nil {
		return fmt.Errorf("init fast provider: %w", err)
	}

	store := memory.NewStore(d)
	board := switchboard.New(primary, fallback, fast, store)
	assembler := prompt.NewAssembler(d)
	research := researcher.New(board, store)

	opts := pipeline.Options{PopTimeout: cfg.PopTimeout(), ErrorSleep: cfg.ErrorSleep()}

	scribe := &pipeline.Scribe{
		Queue:      transport,
		Memory:     store,
		AgentID:    cfg.Agent.UserID,
		AgentName:  cfg.Agent.Name,
		Incoming:   cfg.Queues.Incoming,
		Brain:      cfg.Queues.Brain,
		Enrichment: cfg.Queues.Enrichment,
		Opts:       opts,
	}
	thinker := &pipeline.Thinker{
		Queue:         transport,
		Memory:        store,
		Generator:     board,
		Assembler:     assembler,
		Brain:         cfg.Queues.Brain,
		Analyst:       cfg.Queues.Analyst,
		Enrichment:    cfg.Queues.Enrichment,
		ContextLimit:  cfg.Pipeline.ContextLimit,
		ThoughtsLimit: cfg.Pipeline.ThoughtsLimit,
		Opts:          opts,
	}
	analyst := &pipeline.Analyst{
		Queue:     transport,
		Memory:    store,
		Generator: board,
		Assembler: assembler,
		In:        cfg.Queues.Analyst,
		Out:       cfg.Queues.Coordinator,
		Opts:      opts,
	}
	coordinator := &pipeline.Coordinator{
		Queue:     transport,
		Memory:    store,
		Knowledge: research,
		In:        cfg.Queues.Coordinator,
		Out:       cfg.Queues.Responder,
		Opts:      opts,
	}
	responder := &pipeline.Responder{
		Queue:        transport,
		Memory:       store,
		Generator:    board,
		Assembler:    assembler,
		AgentName:    cfg.Agent.Name,
		In:           cfg.Queues.Responder,
		Out:          cfg.Queues.Outgoing,
		ContextLimit: cfg.Pipeline.ContextLimit,
		Opts:         opts,
	}

	srv := server.NewServer(store, transport, queueNames)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.SetupRouter(),
	}

	slog.Info("synapse starting",
		"agent", cfg.Agent.Name,
		"graph", cfg.Graph.URI,
		"nats", cfg.NATS.URL,
		"port", cfg.Server.Port)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scribe.Run(ctx) })
	g.Go(func() error { return thinker.Run(ctx) })
	g.Go(func() error { return analyst.Run(ctx) })
	g.Go(func() error { return coordinator.Run(ctx) })
	g.Go(func() error { return responder.Run(ctx) })
	g.Go(func() error {
		err := httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
