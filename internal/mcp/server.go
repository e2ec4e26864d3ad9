package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

// Controller is the control plane the tools drive.
type Controller interface {
	Start(ctx context.Context, req control.StartRequest) (string, error)
	ExtendWindow(ctx context.Context, sessionID string) error
	SubmitChallenges(ctx context.Context, sessionID string, challenges map[string]string) (control.SubmitResult, error)
	GetState(ctx context.Context, sessionID string) (*workflows.ReviewState, error)
	Active(ctx context.Context) (*workflows.ReviewState, error)
}

// Server is an MCP server over a review Controller.
type Server struct {
	mcp     *mcp.Server
	control Controller
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "reviewd")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reviewd",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a new MCP server backed by ctrl.
func NewServer(cfg *Config, ctrl Controller) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if ctrl == nil {
		return nil, fmt.Errorf("controller is required")
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		control: ctrl,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
