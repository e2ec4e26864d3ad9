// Package config provides configuration loading for reviewd.
//
// Values come from built-in defaults, then an optional YAML file, then
// REVIEWD_* environment variables. See Load for the precedence rules.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete reviewd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Temporal      TemporalConfig      `koanf:"temporal"`
	Review        ReviewConfig        `koanf:"review"`
	Agents        AgentsConfig        `koanf:"agents"`
	GitHub        GitHubConfig        `koanf:"github"`
	Sources       SourcesConfig       `koanf:"sources"`
	Store         StoreConfig         `koanf:"store"`
	NATS          NATSConfig          `koanf:"nats"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP control plane configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	Host            string   `koanf:"http_host"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// TemporalConfig locates the Temporal frontend.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// ReviewConfig overrides the per-session review policy. Zero values fall back
// to the workflow defaults.
type ReviewConfig struct {
	Specialists           []string `koanf:"specialists"`
	FindingsPerSpecialist int      `koanf:"findings_per_specialist"`
	WindowDuration        Duration `koanf:"window_duration"`
	WindowExtension       Duration `koanf:"window_extension"`
	CheckpointThreshold   int      `koanf:"checkpoint_threshold"`
	SpecialistAttempts    int      `koanf:"specialist_attempts"`
	SpecialistTimeout     Duration `koanf:"specialist_timeout"`
	SpecialistBudget      Duration `koanf:"specialist_budget"`
}

// AgentsConfig selects and configures the model provider behind the
// specialist, challenger, arbitrator and synthesizer capabilities.
type AgentsConfig struct {
	Provider        string  `koanf:"provider"`
	Model           string  `koanf:"model"`
	MaxTokens       int     `koanf:"max_tokens"`
	AnthropicAPIKey Secret  `koanf:"anthropic_api_key"`
	OpenAIAPIKey    Secret  `koanf:"openai_api_key"`
	OpenAIBaseURL   string  `koanf:"openai_base_url"`
	RateLimit       float64 `koanf:"rate_limit"`
	RateBurst       int     `koanf:"rate_burst"`
	// PersonasFile overlays the built-in reviewer personas. Optional.
	PersonasFile string `koanf:"personas_file"`
}

// GitHubConfig configures pull request fetching.
type GitHubConfig struct {
	Token          Secret   `koanf:"token"`
	BaseURL        string   `koanf:"base_url"`
	MaxRetries     int      `koanf:"max_retries"`
	InitialBackoff Duration `koanf:"initial_backoff"`
	MaxBackoff     Duration `koanf:"max_backoff"`
	// WebhookSecret enables the pull request webhook when set.
	WebhookSecret Secret `koanf:"webhook_secret"`
}

// SourcesConfig controls how artifacts are fetched and prepared.
type SourcesConfig struct {
	// GitRoots restricts git: references to these directories. Empty allows
	// any local path.
	GitRoots        []string `koanf:"git_roots"`
	MaxContentBytes int      `koanf:"max_content_bytes"`
	// SecretsAllowlist is an optional TOML file of patterns the artifact
	// scrubber leaves alone.
	SecretsAllowlist string `koanf:"secrets_allowlist"`
	// SecretsEngine is "regex" for the built-in rules or "gitleaks" to add
	// the gitleaks rule set on top of them.
	SecretsEngine string `koanf:"secrets_engine"`
	// IgnorePatterns are gitignore-style rules for files left out of every
	// diff. Repositories add their own in .reviewignore.
	IgnorePatterns []string `koanf:"ignore_patterns"`
}

// StoreConfig locates the SQLite database holding completed reviews.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig configures the progress event stream. An empty URL disables it.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// LoggingConfig carries the knobs operators change most. The rest of
// logging.Config keeps its defaults.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// OTEL tees log records into the global OTel logger provider.
	OTEL bool `koanf:"otel"`
}

// Agent providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9090,
			Host:            "127.0.0.1",
			ShutdownTimeout: Duration(10 * time.Second),
			RateLimit:       10,
			RateBurst:       20,
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "reviews",
		},
		Agents: AgentsConfig{
			Provider:  ProviderAnthropic,
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
			RateLimit: 1,
			RateBurst: 3,
		},
		GitHub: GitHubConfig{
			MaxRetries:     3,
			InitialBackoff: Duration(time.Second),
			MaxBackoff:     Duration(30 * time.Second),
		},
		Sources: SourcesConfig{
			MaxContentBytes: 512 * 1024,
			SecretsEngine:   "regex",
			IgnorePatterns: []string{
				"go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
				"Cargo.lock", "poetry.lock", "vendor/", "node_modules/", "*.min.js",
			},
		},
		Store: StoreConfig{
			Path: "~/.config/reviewd/reviews.db",
		},
		NATS: NATSConfig{
			SubjectPrefix: "reviews",
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "reviewd",
			OTLPEndpoint:    "localhost:4317",
			OTLPProtocol:    "grpc",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server rate limit cannot be negative"))
	}

	if c.Temporal.HostPort == "" {
		errs = append(errs, errors.New("temporal host_port is required"))
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, errors.New("temporal task_queue is required"))
	}

	if c.Review.FindingsPerSpecialist < 0 {
		errs = append(errs, errors.New("review findings_per_specialist cannot be negative"))
	}
	if c.Review.CheckpointThreshold < 0 {
		errs = append(errs, errors.New("review checkpoint_threshold cannot be negative"))
	}

	switch c.Agents.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown agents provider %q", c.Agents.Provider))
	}
	if c.Agents.MaxTokens < 1 {
		errs = append(errs, errors.New("agents max_tokens must be positive"))
	}
	if c.Agents.RateLimit <= 0 {
		errs = append(errs, errors.New("agents rate_limit must be positive"))
	}
	if c.Agents.OpenAIBaseURL != "" {
		if _, err := url.ParseRequestURI(c.Agents.OpenAIBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("agents openai_base_url: %w", err))
		}
	}

	if c.GitHub.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.GitHub.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("github base_url: %w", err))
		}
	}
	if c.GitHub.MaxRetries < 0 {
		errs = append(errs, errors.New("github max_retries cannot be negative"))
	}

	if c.Sources.MaxContentBytes < 0 {
		errs = append(errs, errors.New("sources max_content_bytes cannot be negative"))
	}
	if e := c.Sources.SecretsEngine; e != "" && e != "regex" && e != "gitleaks" {
		errs = append(errs, fmt.Errorf("sources secrets_engine must be regex or gitleaks, got %q", e))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			errs = append(errs, errors.New("service name required when telemetry is enabled"))
		}
		if p := c.Observability.OTLPProtocol; p != "grpc" && p != "http" {
			errs = append(errs, fmt.Errorf("otlp_protocol must be grpc or http, got %q", p))
		}
	}

	if f := c.Logging.Format; f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("logging format must be json or console, got %q", f))
	}

	return errors.Join(errs...)
}

// APIKey returns the credential for the configured provider.
func (a AgentsConfig) APIKey() Secret {
	if a.Provider == ProviderOpenAI {
		return a.OpenAIAPIKey
	}
	return a.AnthropicAPIKey
}
