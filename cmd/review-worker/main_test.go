package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/mocks"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/events"
	"github.com/fyrsmithlabs/reviewd/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Agents.AnthropicAPIKey = config.Secret("sk-ant-test")
	cfg.Store.Path = filepath.Join(t.TempDir(), "reviews.db")
	cfg.Sources.GitRoots = []string{t.TempDir()}
	return cfg
}

func TestBuildActivities(t *testing.T) {
	acts, cleanup, err := buildActivities(context.Background(), testConfig(t), &mocks.Client{}, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, acts.Fetcher)
	assert.NotNil(t, acts.Specialist)
	assert.NotNil(t, acts.Sink)
	assert.NotNil(t, acts.Progress)
	assert.NotNil(t, acts.Scrubber)
	assert.IsType(t, events.NoopPublisher{}, acts.Events)
}

func TestBuildActivities_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Agents.AnthropicAPIKey = ""
		_, _, err := buildActivities(context.Background(), cfg, &mocks.Client{}, logging.NewNop())
		assert.ErrorContains(t, err, "model provider")
	})

	t.Run("missing personas file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Agents.PersonasFile = filepath.Join(t.TempDir(), "nope.toml")
		_, _, err := buildActivities(context.Background(), cfg, &mocks.Client{}, logging.NewNop())
		assert.ErrorContains(t, err, "personas file")
	})

	t.Run("unreachable nats", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.NATS.URL = "nats://127.0.0.1:1"
		_, _, err := buildActivities(context.Background(), cfg, &mocks.Client{}, logging.NewNop())
		assert.ErrorContains(t, err, "connecting to nats")
	})
}
