package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestTemporalLogger(t *testing.T) {
	tl := NewTestLogger()
	l := NewTemporalLogger(tl.Logger)

	l.Info("Started Worker", "Namespace", "default", "TaskQueue", "reviews")
	l.Warn("retrying", "Attempt", 2, "Error", errors.New("boom"))
	l.With("WorkflowID", "review-x").Error("task failed", "dangling")

	entries := tl.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "temporal", entries[0].LoggerName)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "reviews", entries[0].ContextMap()["TaskQueue"])

	warn := entries[1].ContextMap()
	assert.Equal(t, int64(2), warn["Attempt"])
	assert.Equal(t, "boom", warn["Error"])

	errEntry := entries[2].ContextMap()
	assert.Equal(t, "review-x", errEntry["WorkflowID"])
	assert.Equal(t, "dangling", errEntry["extra"])
}

func TestTemporalLogger_NilLogger(t *testing.T) {
	l := NewTemporalLogger(nil)
	assert.NotPanics(t, func() { l.Debug("quiet") })
}

func TestKeyvalFields_NonStringKey(t *testing.T) {
	fields := keyvalFields([]interface{}{42, "answer"})
	require.Len(t, fields, 1)
	assert.Equal(t, "42", fields[0].Key)
}
