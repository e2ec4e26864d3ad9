package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledCore(t *testing.T) {
	base, observed := observer.New(TraceLevel)
	core := newSampledCore(base, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Hour),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.DebugLevel: {Initial: 2, Thereafter: 0},
		},
	})
	z := zap.New(core)

	for i := 0; i < 5; i++ {
		z.Debug("heartbeat")
		z.Info("progress")
		z.Error("failed")
	}

	assert.Equal(t, 2, observed.FilterMessage("heartbeat").Len())
	assert.Equal(t, 5, observed.FilterMessage("progress").Len(), "unsampled level passes through")
	assert.Equal(t, 5, observed.FilterMessage("failed").Len())
}

func TestSampledCore_Disabled(t *testing.T) {
	base, _ := observer.New(TraceLevel)
	assert.Same(t, base, newSampledCore(base, SamplingConfig{Enabled: false}))
}

func TestSampledCore_WithKeepsFilter(t *testing.T) {
	base, observed := observer.New(TraceLevel)
	core := newSampledCore(base, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Hour),
		Levels:  map[zapcore.Level]LevelSamplingConfig{zapcore.InfoLevel: {Initial: 1}},
	})
	z := zap.New(core).With(zap.String("session", "s1"))

	z.Info("once")
	z.Info("once")
	z.Warn("always")

	entries := observed.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "s1", entries[0].ContextMap()["session"])
	}
}
