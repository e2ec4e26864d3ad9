// Reviewd is the HTTP control plane for durable code review sessions.
//
// It starts, inspects, extends and cancels review workflows on Temporal and
// serves review history from the SQLite store the worker writes to. The
// workflows themselves run in review-worker.
//
// Usage:
//
//	# Start with ~/.config/reviewd/config.yaml
//	reviewd
//
//	# Explicit config, resuming the last known session after a restart
//	reviewd -config /etc/reviewd.yaml -adopt latest
//
//	reviewd version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/log/global"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/control"
	httpserver "github.com/fyrsmithlabs/reviewd/internal/http"
	"github.com/fyrsmithlabs/reviewd/internal/logging"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/telemetry"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// adoptLatest selects the newest stored record for -adopt.
const adoptLatest = "latest"

var (
	configPath = flag.String("config", "", "path to config.yaml (default ~/.config/reviewd/config.yaml)")
	adopt      = flag.String("adopt", "", `session ID to treat as current on startup, or "latest"`)
)

func main() {
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
			fmt.Fprintf(os.Stderr, "  reviewd [-config path] [-adopt id|latest]   Start the control plane\n")
			fmt.Fprintf(os.Stderr, "  reviewd version                            Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *adopt); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("reviewd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the control plane and blocks until ctx is cancelled:
//  1. Loads configuration and builds the logger and telemetry
//  2. Connects to Temporal and opens the record store
//  3. Serves the HTTP API until shutdown
func run(ctx context.Context, path, adoptID string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, "api")
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, "api", version), logger.Underlying())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "reviewd starting",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("temporal_host", cfg.Temporal.HostPort),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
	)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("unable to create Temporal client: %w", err)
	}
	defer c.Close()

	storePath, err := config.ExpandPath(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("store path: %w", err)
	}
	st, err := store.Open(ctx, storePath, logger.Underlying())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	svc := control.New(c, workflows.PolicyFromConfig(cfg.Review, cfg.Temporal.TaskQueue), logger)
	if err := adoptSession(ctx, svc, st, adoptID); err != nil {
		return err
	}
	if id := svc.ActiveID(); id != "" {
		logger.Info(ctx, "adopted review session", zap.String("session_id", id))
	}

	srv, err := httpserver.NewServer(svc, st, logger.Underlying(), httpserver.ConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

type adopter interface {
	Adopt(sessionID string)
}

type recordLister interface {
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// adoptSession restores the current session after a restart. An empty id
// leaves the service with no current session.
func adoptSession(ctx context.Context, svc adopter, records recordLister, id string) error {
	switch id {
	case "":
		return nil
	case adoptLatest:
		recs, err := records.List(ctx, 1)
		if err != nil {
			return fmt.Errorf("reading latest record: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		svc.Adopt(recs[0].SessionID)
	default:
		svc.Adopt(id)
	}
	return nil
}
