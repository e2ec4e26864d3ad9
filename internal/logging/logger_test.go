package logging

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }, "output"},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "tick"},
		{"error sampled", func(c *Config) {
			c.Sampling.Levels[zapcore.ErrorLevel] = LevelSamplingConfig{Initial: 1}
		}, "cannot be sampled"},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"["} }, "invalid redaction pattern"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "empty value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, l.Enabled(zapcore.InfoLevel))
	assert.False(t, l.Enabled(zapcore.DebugLevel))

	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}
	_, err = NewLogger(cfg, nil)
	assert.Error(t, err, "otel output without a provider leaves no core")
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithSessionID(context.Background(), "review-acme-widgets-42")
	ctx = WithFindingID(ctx, "security-1")
	ctx = WithRequestID(ctx, "req.7")

	tl.Info(ctx, "dispute opened", zap.Int("sources", 2))

	tl.AssertLogged(t, zapcore.InfoLevel, "dispute opened")
	tl.AssertField(t, "dispute opened", "session.id", "review-acme-widgets-42")
	tl.AssertField(t, "dispute opened", "finding.id", "security-1")
	tl.AssertField(t, "dispute opened", "request.id", "req.7")
	tl.AssertField(t, "dispute opened", "sources", int64(2))
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tl := NewTestLogger()
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tl.Debug(ctx, "traced")
	tl.AssertField(t, "traced", "trace_id", sc.TraceID().String())
	tl.AssertField(t, "traced", "span_id", sc.SpanID().String())
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()
	tl.Trace(ctx, "t")
	tl.Debug(ctx, "d")
	tl.Warn(ctx, "w")
	tl.Error(ctx, "e")

	levels := make([]zapcore.Level, 0, 4)
	for _, e := range tl.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{TraceLevel, zapcore.DebugLevel, zapcore.WarnLevel, zapcore.ErrorLevel}, levels)

	tl.Reset()
	tl.Named("worker").With(zap.String("queue", "reviews")).Info(ctx, "polling")
	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "worker", entries[0].LoggerName)
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("review-acme_1.2"))
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID("has space"))
	assert.Error(t, ValidateID(strings.Repeat("a", maxIDLen+1)))

	ctx := WithSessionID(context.Background(), "bad id\n")
	assert.Empty(t, SessionIDFromContext(ctx))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestWrap(t *testing.T) {
	assert.NotNil(t, Wrap(nil).Underlying())
	z := zap.NewNop()
	assert.Same(t, z, Wrap(z).Underlying())
}

func TestIsStdoutSyncError(t *testing.T) {
	assert.True(t, isStdoutSyncError(syscall.EINVAL))
	assert.True(t, isStdoutSyncError(&wrappedErr{syscall.ENOTTY}))
	assert.False(t, isStdoutSyncError(errors.New("disk full")))
}

type wrappedErr struct{ err error }

func (w *wrappedErr) Error() string { return "sync: " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console", OTEL: true}, "worker")
	require.NoError(t, err)
	assert.True(t, cfg.Output.OTEL)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "worker", cfg.Fields["component"])
	assert.Equal(t, "reviewd", cfg.Fields["service"])

	cfg, err = FromSettings(config.LoggingConfig{}, "")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.NotContains(t, cfg.Fields, "component")

	_, err = FromSettings(config.LoggingConfig{Level: "loud"}, "")
	assert.ErrorContains(t, err, "logging level")

	_, err = FromSettings(config.LoggingConfig{Format: "xml"}, "")
	assert.Error(t, err)
}

func TestNewLogger_StderrOnly(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{Stderr: true}
	l, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	l.Info(context.Background(), "to stderr")
}
