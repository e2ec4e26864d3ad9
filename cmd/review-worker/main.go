// Package main provides the Temporal worker for review sessions.
//
// The worker hosts the review and dispute workflows together with the
// activities that fetch artifacts, call the model provider, persist records
// and publish events.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-ant-xxx \
//	GITHUB_TOKEN=ghp_xxx \
//	./review-worker -config /etc/reviewd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/log/global"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/agents"
	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/events"
	"github.com/fyrsmithlabs/reviewd/internal/ignore"
	"github.com/fyrsmithlabs/reviewd/internal/logging"
	"github.com/fyrsmithlabs/reviewd/internal/secrets"
	"github.com/fyrsmithlabs/reviewd/internal/source"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/telemetry"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/reviewd/config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, "worker")
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, "worker", version), logger.Underlying())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logger.Info(ctx, "review worker starting",
		zap.String("temporal_host", cfg.Temporal.HostPort),
		zap.String("provider", cfg.Agents.Provider),
		zap.String("model", cfg.Agents.Model),
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

	logger.Info(ctx, "temporal client connected", zap.String("host", cfg.Temporal.HostPort))

	acts, cleanup, err := buildActivities(ctx, cfg, c, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	queue := cfg.Temporal.TaskQueue
	if queue == "" {
		queue = workflows.DefaultTaskQueue
	}
	w := worker.New(c, queue, worker.Options{})
	w.RegisterWorkflow(workflows.ReviewWorkflow)
	w.RegisterWorkflow(workflows.DisputeWorkflow)
	w.RegisterActivity(acts)

	logger.Info(ctx, "worker configured", zap.String("task_queue", queue))

	workerErrors := make(chan error, 1)
	go func() {
		logger.Info(ctx, "worker starting")
		workerErrors <- w.Run(worker.InterruptCh())
	}()

	select {
	case err := <-workerErrors:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	logger.Info(ctx, "worker stopped gracefully")
	return nil
}

// buildActivities assembles the activity collaborators. The returned cleanup
// releases the store and the NATS connection.
func buildActivities(ctx context.Context, cfg *config.Config, c client.Client, logger *logging.Logger) (*workflows.Activities, func(), error) {
	z := logger.Underlying()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*workflows.Activities, func(), error) {
		cleanup()
		return nil, nil, err
	}

	gh, err := source.NewGitHubClient(ctx, cfg.GitHub.Token, cfg.GitHub.BaseURL)
	if err != nil {
		return fail(fmt.Errorf("github client: %w", err))
	}
	roots := make([]string, 0, len(cfg.Sources.GitRoots))
	for _, r := range cfg.Sources.GitRoots {
		expanded, err := config.ExpandPath(r)
		if err != nil {
			return fail(fmt.Errorf("git root %q: %w", r, err))
		}
		roots = append(roots, expanded)
	}
	rules := ignore.New(cfg.Sources.IgnorePatterns)
	fetcher := source.NewRouter(
		source.NewGitHubFetcher(gh, source.RetryConfigFrom(cfg.GitHub), z),
		source.NewGitFetcher(roots, rules, z),
		cfg.Sources.MaxContentBytes,
	).WithIgnore(rules)

	completer, err := agents.NewCompleter(cfg.Agents)
	if err != nil {
		return fail(fmt.Errorf("model provider: %w", err))
	}
	personas, err := agents.LoadPersonas(cfg.Agents.PersonasFile)
	if err != nil {
		return fail(err)
	}
	panel := agents.NewPanel(completer, personas, cfg.Agents.MaxTokens, z)

	scrubCfg := secrets.DefaultConfig()
	scrubCfg.AllowListFile = cfg.Sources.SecretsAllowlist
	if cfg.Sources.SecretsEngine != "" {
		scrubCfg.Engine = cfg.Sources.SecretsEngine
	}
	scrubber, err := secrets.New(scrubCfg)
	if err != nil {
		return fail(fmt.Errorf("secret scrubber: %w", err))
	}

	storePath, err := config.ExpandPath(cfg.Store.Path)
	if err != nil {
		return fail(fmt.Errorf("store path: %w", err))
	}
	st, err := store.Open(ctx, storePath, z)
	if err != nil {
		return fail(fmt.Errorf("opening store: %w", err))
	}
	closers = append(closers, func() { _ = st.Close() })

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, z)
		if err != nil {
			return fail(fmt.Errorf("connecting to nats: %w", err))
		}
		closers = append(closers, func() { _ = np.Close() })
		publisher = np
	}

	return &workflows.Activities{
		Fetcher:     fetcher,
		Specialist:  panel,
		Challenger:  panel,
		Arbitrator:  panel,
		Synthesizer: panel,
		Sink:        st,
		Progress:    workflows.NewSignalProgressReporter(c),
		Events:      publisher,
		Scrubber:    scrubber,
	}, cleanup, nil
}
