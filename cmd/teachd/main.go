// Teachd is a workflow daemon for an AI-assisted teaching chatbot.
//
// This binary starts the teachd HTTP server with full service
// initialization: intent classification, session memory, workflow
// orchestration, generation, speech, and notification.
//
// Configuration is loaded from ~/.config/teachd/config.yaml overridden
// by environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	teachd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9091 GENERATION_MODEL=gpt-4o-mini teachd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/config"
	"github.com/fyrsmithlabs/teachd/internal/generation"
	httpapi "github.com/fyrsmithlabs/teachd/internal/http"
	"github.com/fyrsmithlabs/teachd/internal/intent"
	"github.com/fyrsmithlabs/teachd/internal/logging"
	"github.com/fyrsmithlabs/teachd/internal/memory"
	"github.com/fyrsmithlabs/teachd/internal/notify"
	"github.com/fyrsmithlabs/teachd/internal/services"
	"github.com/fyrsmithlabs/teachd/internal/session"
	"github.com/fyrsmithlabs/teachd/internal/speech"
	"github.com/fyrsmithlabs/teachd/internal/telemetry"
	"github.com/fyrsmithlabs/teachd/internal/workflow"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  teachd           Start the teachd daemon\n")
			fmt.Fprintf(os.Stderr, "  teachd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("teachd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the teachd server and blocks until the context is
// cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logCfg, err := logging.ParseConfig(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zlog := logger.Underlying()

	zlog.Info("starting teachd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("telemetry", cfg.Observability.Enabled),
	)

	tel, err := telemetry.New(ctx, &cfg.Observability, version)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			zlog.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Persistence: SQLite when a path is configured, in-memory
	// otherwise.
	var store session.Store
	if cfg.Storage.Path != "" {
		sqlStore, err := session.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		store = sqlStore
		zlog.Info("session store opened", zap.String("path", cfg.Storage.Path))
	} else {
		store = session.NewMemoryStore()
		zlog.Warn("no storage path configured, sessions are not persisted")
	}
	defer store.Close()

	classifier := intent.NewClassifier()
	mem := memory.NewService(zlog)

	sweeper, err := memory.NewSweeper(mem, zlog,
		memory.WithSweepInterval(cfg.Memory.SweepInterval.Duration()),
		memory.WithBaseMaxAge(cfg.Memory.BaseMaxAge.Duration()),
	)
	if err != nil {
		return fmt.Errorf("creating memory sweeper: %w", err)
	}
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting memory sweeper: %w", err)
	}
	defer sweeper.Stop()

	gen, err := generation.NewService(generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		APIKey:  cfg.Generation.APIKey.Value(),
		Timeout: cfg.Workflow.GenerationTimeout.Duration(),
	}, zlog)
	if err != nil {
		return fmt.Errorf("creating generation service: %w", err)
	}

	var speechClient speech.Client
	if cfg.Speech.APIKey.IsSet() {
		speechClient, err = speech.NewClient(speech.Config{
			BaseURL:      cfg.Speech.BaseURL,
			APIKey:       cfg.Speech.APIKey.Value(),
			DefaultVoice: cfg.Speech.DefaultVoiceID,
		}, zlog)
		if err != nil {
			return fmt.Errorf("creating speech client: %w", err)
		}
	}

	var notifier notify.Notifier = notify.NewLogNotifier(zlog)
	if cfg.Notify.Enabled {
		mailer, err := notify.NewMailNotifier(notify.MailConfig{
			BaseURL:     cfg.Notify.BaseURL,
			APIKey:      cfg.Notify.APIKey.Value(),
			SenderEmail: cfg.Notify.SenderEmail,
		}, zlog)
		if err != nil {
			return fmt.Errorf("creating mail notifier: %w", err)
		}
		notifier = mailer
	}

	wf, err := workflow.NewService(&workflow.Config{
		CheckpointTimeout:   cfg.Workflow.CheckpointTimeout.Duration(),
		MaxRegenerations:    cfg.Workflow.MaxRegenerations,
		MinIntentConfidence: cfg.Workflow.MinIntentConfidence,
		GenerationTimeout:   cfg.Workflow.GenerationTimeout.Duration(),
		Pipeline:            workflow.DefaultPipeline(),
	}, classifier, mem, gen, notifier, logger)
	if err != nil {
		return fmt.Errorf("creating workflow orchestrator: %w", err)
	}
	defer func() {
		if err := wf.Close(); err != nil {
			zlog.Warn("workflow shutdown failed", zap.Error(err))
		}
	}()

	registry := services.NewRegistry(services.Options{
		Classifier: classifier,
		Memory:     mem,
		Workflow:   wf,
		Generation: gen,
		Speech:     speechClient,
		Notifier:   notifier,
		Sessions:   store,
	})

	srv, err := httpapi.NewServer(registry, zlog, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Terminal runs are purged in the background so status stays
	// queryable for a while after completion.
	go sweepRuns(ctx, wf, cfg.Workflow.RunRetention.Duration(), zlog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	zlog.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// sweepRuns periodically discards terminal workflow runs older than the
// retention window.
func sweepRuns(ctx context.Context, wf workflow.Service, retention time.Duration, logger *zap.Logger) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := wf.SweepRuns(ctx, retention); removed > 0 {
				logger.Info("purged old workflow runs", zap.Int("removed", removed))
			}
		}
	}
}
