package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg RedactionConfig) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), TraceLevel)), &buf
}

func TestRedactingEncoder(t *testing.T) {
	cfg := NewDefaultConfig().Redaction
	ghToken := "ghp_" + "abcdefghijklmnopqrstuvwxyz0123456789"

	t.Run("sensitive key replaced", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.Info("calling github", zap.String("token", "hunter2"))
		assert.NotContains(t, buf.String(), "hunter2")
		assert.Contains(t, buf.String(), `"token":"[REDACTED]"`)
	})

	t.Run("key match is case insensitive", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.Info("calling github", zap.String("Authorization", "Basic abc"))
		assert.NotContains(t, buf.String(), "Basic abc")
	})

	t.Run("pattern masked in place", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.Info("fetch", zap.String("url", "https://x/?t="+ghToken+"&page=2"))
		out := buf.String()
		assert.NotContains(t, out, ghToken)
		assert.Contains(t, out, "&page=2")
	})

	t.Run("message masked", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.Info("header was Bearer abc.def.ghi")
		assert.NotContains(t, buf.String(), "abc.def.ghi")
	})

	t.Run("error masked", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.Error("fetch failed", zap.Error(errors.New("401 for "+ghToken)))
		out := buf.String()
		assert.NotContains(t, out, ghToken)
		assert.Contains(t, out, "401 for")
	})

	t.Run("With fields redacted", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.With(zap.String("api_key", "sk-live")).Info("model call")
		assert.NotContains(t, buf.String(), "sk-live")
	})

	t.Run("reflected value under sensitive key", func(t *testing.T) {
		z, buf := newBufferLogger(t, cfg)
		z.Info("config", zap.Any("credential", map[string]string{"k": "v"}))
		assert.Contains(t, buf.String(), `"credential":"[REDACTED]"`)
	})

	t.Run("disabled passes through", func(t *testing.T) {
		z, buf := newBufferLogger(t, RedactionConfig{})
		z.Info("calling github", zap.String("token", "hunter2"))
		assert.Contains(t, buf.String(), "hunter2")
	})
}

func TestNewRedactingEncoder_RejectsBadPatterns(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	assert.Error(t, err)

	long := make([]byte, maxPatternLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{string(long)}})
	assert.ErrorContains(t, err, "too long")
}

func TestSecretField(t *testing.T) {
	f := Secret("github_token", config.Secret("abcdef"))
	assert.Equal(t, "[REDACTED:6]", f.String)

	f = RedactedString("authorization", "")
	assert.Equal(t, "[REDACTED:0]", f.String)
}
