// Review-mcp exposes review sessions as MCP tools over stdio.
//
// Tool calls are delegated to a running reviewd daemon so the single active
// session is enforced in one place. Stdout carries the MCP protocol; logs go
// to stderr.
//
// Usage:
//
//	review-mcp                                   # daemon at localhost:<server.http_port>
//	review-mcp -server http://reviews.internal:9090
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/apiclient"
	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/logging"
	"github.com/fyrsmithlabs/reviewd/internal/mcp"
	"github.com/fyrsmithlabs/reviewd/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/reviewd/config.yaml)")
	server := flag.String("server", "", "reviewd URL (default http://localhost:<server.http_port>)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *server); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, serverURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, "mcp")
	if err != nil {
		return err
	}
	logCfg.Output = logging.OutputConfig{Stderr: true, OTEL: logCfg.Output.OTEL}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, "mcp", version), logger.Underlying())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	daemonURL := resolveServerURL(serverURL, cfg.Server.Port)
	logger.Info(ctx, "starting MCP stdio server", zap.String("daemon_url", daemonURL))

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "reviewd",
		Version: version,
		Logger:  logger.Underlying(),
	}, apiclient.New(daemonURL, nil))
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}

// resolveServerURL prefers an explicit URL and otherwise targets the local
// daemon on its configured port.
func resolveServerURL(explicit string, port int) string {
	if explicit != "" {
		return explicit
	}
	return fmt.Sprintf("http://localhost:%d", port)
}
