package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// RetryConfig bounds in-process retries of a single GitHub call. Activity
// retries sit on top of these.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns three retries from 1s up to 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigFrom converts the github config section.
func RetryConfigFrom(gc config.GitHubConfig) RetryConfig {
	rc := RetryConfig{
		MaxRetries:     gc.MaxRetries,
		InitialBackoff: gc.InitialBackoff.Duration(),
		MaxBackoff:     gc.MaxBackoff.Duration(),
	}
	rc.applyDefaults()
	return rc
}

func (c *RetryConfig) applyDefaults() {
	d := DefaultRetryConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
}

// withRetry runs op until it succeeds, fails permanently or the retries run
// out. Permanent failures come back wrapping workflows.ErrPermanent.
func withRetry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, op func() (*github.Response, error)) error {
	cfg.applyDefaults()
	backoff := cfg.InitialBackoff
	start := time.Now()

	var lastErr error
	var lastResp *github.Response
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := op()
		if err == nil {
			if attempt > 0 {
				logger.Info("github call recovered",
					zap.Int("retries", attempt),
					zap.Duration("elapsed", time.Since(start)))
			}
			return nil
		}
		lastErr, lastResp = err, resp

		if !retryable(err, resp) {
			if permanent(resp) {
				return fmt.Errorf("%w: github returned %d: %v", workflows.ErrPermanent, statusCode(resp), err)
			}
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		if rateLimited(resp) {
			backoff = rateLimitWait(resp, cfg.MaxBackoff)
		}
		logger.Info("retrying github call",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxRetries+1),
			zap.Int("status_code", statusCode(resp)),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("github call canceled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	logger.Warn("github call failed after retries",
		zap.Int("attempts", cfg.MaxRetries+1),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("status_code", statusCode(lastResp)),
		zap.Error(lastErr))
	return fmt.Errorf("github call failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// retryable treats transport errors without a response as transient.
func retryable(err error, resp *github.Response) bool {
	if err == nil {
		return false
	}
	code := statusCode(resp)
	switch {
	case code == 0:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code == http.StatusForbidden:
		// Secondary rate limits arrive as 403 with rate headers.
		return resp.Rate.Limit > 0 && resp.Rate.Remaining == 0
	case code >= 500 && code < 600:
		return true
	default:
		return false
	}
}

// permanent reports client errors no retry at any layer will fix.
func permanent(resp *github.Response) bool {
	switch statusCode(resp) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusGone, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

func rateLimited(resp *github.Response) bool {
	switch statusCode(resp) {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return resp.Rate.Limit > 0
	default:
		return false
	}
}

// rateLimitWait waits until the advertised reset plus a second, capped at ceiling.
func rateLimitWait(resp *github.Response, ceiling time.Duration) time.Duration {
	if resp == nil || resp.Rate.Reset.Time.IsZero() {
		return ceiling
	}
	wait := time.Until(resp.Rate.Reset.Time) + time.Second
	if wait < time.Second {
		wait = time.Second
	}
	if wait > ceiling {
		wait = ceiling
	}
	return wait
}

func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}
