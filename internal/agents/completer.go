package agents

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"golang.org/x/time/rate"
)

// Request is one prompt sent to a model.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completer sends a prompt and returns the full response text. When
// onPartial is non-nil it receives the accumulated text as it streams.
type Completer interface {
	Complete(ctx context.Context, req Request, onPartial workflows.PartialFunc) (string, error)
}

// NewCompleter builds the provider selected in cfg, paced by its rate limit.
func NewCompleter(cfg config.AgentsConfig) (Completer, error) {
	key := cfg.APIKey()
	if !key.IsSet() {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	var c Completer
	switch cfg.Provider {
	case config.ProviderAnthropic:
		c = NewAnthropicCompleter(key, cfg.Model, "")
	case config.ProviderOpenAI:
		c = NewOpenAICompleter(key, cfg.Model, cfg.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return Limit(c, rate.Limit(cfg.RateLimit), cfg.RateBurst), nil
}

type limitedCompleter struct {
	next    Completer
	limiter *rate.Limiter
}

// Limit paces calls to next. Callers block until the limiter admits them or
// their context ends.
func Limit(next Completer, r rate.Limit, burst int) Completer {
	if burst < 1 {
		burst = 1
	}
	return &limitedCompleter{next: next, limiter: rate.NewLimiter(r, burst)}
}

func (l *limitedCompleter) Complete(ctx context.Context, req Request, onPartial workflows.PartialFunc) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}
	return l.next.Complete(ctx, req, onPartial)
}

// classifyStatus wraps err as permanent when the HTTP status says the
// request itself is at fault.
func classifyStatus(provider string, status int, err error) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s rejected request (status %d): %v", workflows.ErrPermanent, provider, status, err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}
