package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func respWithStatus(code int) *github.Response {
	return &github.Response{Response: &http.Response{StatusCode: code}}
}

func TestRetryConfigFrom(t *testing.T) {
	rc := RetryConfigFrom(config.GitHubConfig{MaxRetries: 5, InitialBackoff: config.Duration(2 * time.Second)})
	assert.Equal(t, 5, rc.MaxRetries)
	assert.Equal(t, 2*time.Second, rc.InitialBackoff)
	assert.Equal(t, 30*time.Second, rc.MaxBackoff)
	assert.Equal(t, 2.0, rc.BackoffMultiplier)
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	t.Run("success after transient errors", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, fastRetry(), log, func() (*github.Response, error) {
			calls++
			if calls < 3 {
				return respWithStatus(http.StatusBadGateway), errors.New("bad gateway")
			}
			return respWithStatus(http.StatusOK), nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("not found is permanent and not retried", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, fastRetry(), log, func() (*github.Response, error) {
			calls++
			return respWithStatus(http.StatusNotFound), errors.New("not found")
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausted retries stay transient", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, fastRetry(), log, func() (*github.Response, error) {
			calls++
			return respWithStatus(http.StatusServiceUnavailable), errors.New("unavailable")
		})
		require.Error(t, err)
		assert.False(t, errors.Is(err, workflows.ErrPermanent))
		assert.Contains(t, err.Error(), "after 3 retries")
		assert.Equal(t, 4, calls)
	})

	t.Run("network error without response is retried", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, fastRetry(), log, func() (*github.Response, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return respWithStatus(http.StatusOK), nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("canceled context stops waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cfg := fastRetry()
		cfg.InitialBackoff = time.Hour
		cfg.MaxBackoff = time.Hour
		err := withRetry(cctx, cfg, log, func() (*github.Response, error) {
			cancel()
			return respWithStatus(http.StatusInternalServerError), errors.New("boom")
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRetryable(t *testing.T) {
	rateLimited403 := respWithStatus(http.StatusForbidden)
	rateLimited403.Rate = github.Rate{Limit: 5000, Remaining: 0}

	tests := []struct {
		name string
		resp *github.Response
		want bool
	}{
		{"no response", nil, true},
		{"429", respWithStatus(http.StatusTooManyRequests), true},
		{"500", respWithStatus(http.StatusInternalServerError), true},
		{"504", respWithStatus(http.StatusGatewayTimeout), true},
		{"403 rate limited", rateLimited403, true},
		{"403 plain", respWithStatus(http.StatusForbidden), false},
		{"401", respWithStatus(http.StatusUnauthorized), false},
		{"404", respWithStatus(http.StatusNotFound), false},
		{"422", respWithStatus(http.StatusUnprocessableEntity), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(errors.New("x"), tt.resp))
		})
	}
	assert.False(t, retryable(nil, nil))
}

func TestRateLimitWait(t *testing.T) {
	assert.Equal(t, time.Minute, rateLimitWait(nil, time.Minute))

	soon := respWithStatus(http.StatusTooManyRequests)
	soon.Rate.Reset = github.Timestamp{Time: time.Now().Add(5 * time.Second)}
	wait := rateLimitWait(soon, time.Minute)
	assert.Greater(t, wait, 4*time.Second)
	assert.LessOrEqual(t, wait, 6*time.Second)

	late := respWithStatus(http.StatusTooManyRequests)
	late.Rate.Reset = github.Timestamp{Time: time.Now().Add(time.Hour)}
	assert.Equal(t, time.Minute, rateLimitWait(late, time.Minute))

	past := respWithStatus(http.StatusTooManyRequests)
	past.Rate.Reset = github.Timestamp{Time: time.Now().Add(-time.Hour)}
	assert.Equal(t, time.Second, rateLimitWait(past, time.Minute))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 0, statusCode(nil))
	assert.Equal(t, 0, statusCode(&github.Response{}))
	assert.Equal(t, 404, statusCode(respWithStatus(404)))
}
