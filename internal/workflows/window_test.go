package workflows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeWindow(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("opens once", func(t *testing.T) {
		var w ChallengeWindow
		require.True(t, w.OpenFor(t0, 10*time.Minute))
		assert.False(t, w.OpenFor(t0.Add(time.Minute), time.Minute))
		assert.Equal(t, t0.Add(10*time.Minute), w.Deadline)
		assert.Equal(t, 4*time.Minute, w.Remaining(t0.Add(6*time.Minute)))
	})

	t.Run("extensions stack on the deadline", func(t *testing.T) {
		var w ChallengeWindow
		w.OpenFor(t0, 10*time.Minute)
		assert.True(t, w.Extend(2*time.Minute))
		assert.True(t, w.Extend(2*time.Minute))
		assert.Equal(t, t0.Add(14*time.Minute), w.Deadline)
		assert.Equal(t, 2, w.Extensions)
	})

	t.Run("closed window ignores extend", func(t *testing.T) {
		var w ChallengeWindow
		w.OpenFor(t0, 10*time.Minute)
		require.True(t, w.Close(t0.Add(time.Minute)))
		assert.False(t, w.Close(t0.Add(2*time.Minute)))
		assert.False(t, w.Extend(2*time.Minute))
		assert.Equal(t, t0.Add(10*time.Minute), w.Deadline)
		assert.Equal(t, time.Duration(0), w.Remaining(t0))
		assert.Equal(t, t0.Add(time.Minute), w.ClosedAt)
	})

	t.Run("never opened window cannot be extended", func(t *testing.T) {
		var w ChallengeWindow
		assert.False(t, w.Extend(time.Minute))
		assert.False(t, w.Close(t0))
	})

	t.Run("remaining is zero past the deadline", func(t *testing.T) {
		var w ChallengeWindow
		w.OpenFor(t0, time.Minute)
		assert.Equal(t, time.Duration(0), w.Remaining(t0.Add(2*time.Minute)))
	})

	t.Run("record keeps the last text per finding", func(t *testing.T) {
		var w ChallengeWindow
		changed := w.Record(map[string]string{"b-1": "first", "a-1": "only", "c-1": ""})
		assert.Equal(t, []string{"a-1", "b-1"}, changed)

		changed = w.Record(map[string]string{"b-1": "second"})
		assert.Equal(t, []string{"b-1"}, changed)
		require.NotNil(t, w.HumanText("b-1"))
		assert.Equal(t, "second", *w.HumanText("b-1"))
		assert.Nil(t, w.HumanText("c-1"))
	})
}
