package workflows

import (
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

func TestClassifyTaskError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want SlotStatus
	}{
		{"success", nil, SlotComplete},
		{"heartbeat timeout", temporal.NewHeartbeatTimeoutError(), SlotTimedOut},
		{"application error", temporal.NewApplicationError("bad output", "ParseError"), SlotFailed},
		{"plain error", errors.New("boom"), SlotFailed},
		{"cancelled", temporal.NewCanceledError(), SlotFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTaskError(tt.err))
		})
	}
}

func TestDescribeTaskError(t *testing.T) {
	assert.Equal(t, "", DescribeTaskError(nil))
	assert.Equal(t, "timed out", DescribeTaskError(temporal.NewHeartbeatTimeoutError()))
	assert.Equal(t, "fetch artifact: not found",
		DescribeTaskError(temporal.NewNonRetryableApplicationError("fetch artifact: not found", ErrTypeNonRetryable, nil)))
	assert.Equal(t, "boom", DescribeTaskError(errors.New("boom")))
}

func TestTaskPolicyBackoff(t *testing.T) {
	p := TaskPolicy{InitialBackoff: time.Second, BackoffMultiplier: 2, MaximumBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
}

func TestTaskPolicyActivityOptions(t *testing.T) {
	p := DefaultReviewPolicy().Specialist
	opts := p.ActivityOptions()

	assert.Equal(t, 3*time.Minute, opts.StartToCloseTimeout)
	assert.Equal(t, 10*time.Minute, opts.ScheduleToCloseTimeout)
	assert.Equal(t, 30*time.Second, opts.HeartbeatTimeout)
	require.NotNil(t, opts.RetryPolicy)
	assert.Equal(t, int32(3), opts.RetryPolicy.MaximumAttempts)
	assert.Equal(t, time.Second, opts.RetryPolicy.InitialInterval)
	assert.Equal(t, 2.0, opts.RetryPolicy.BackoffCoefficient)
	assert.Contains(t, opts.RetryPolicy.NonRetryableErrorTypes, ErrTypeNonRetryable)
}

func TestReviewPolicyValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultReviewPolicy().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*ReviewPolicy)
	}{
		{"empty roster", func(p *ReviewPolicy) { p.Specialists = nil }},
		{"duplicate specialist", func(p *ReviewPolicy) { p.Specialists = []string{"security", "security"} }},
		{"bad specialist name", func(p *ReviewPolicy) { p.Specialists = []string{"Security Team"} }},
		{"zero cap", func(p *ReviewPolicy) { p.FindingsPerSpecialist = 0 }},
		{"negative window", func(p *ReviewPolicy) { p.WindowDuration = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultReviewPolicy()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.ReviewConfig{
		Specialists:        []string{"security", "performance"},
		WindowDuration:     config.Duration(5 * time.Minute),
		SpecialistAttempts: 5,
	}, "reviews")

	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"security", "performance"}, p.Specialists)
	assert.Equal(t, 5*time.Minute, p.WindowDuration)
	assert.Equal(t, 120*time.Second, p.WindowExtension)
	assert.Equal(t, int32(5), p.Specialist.MaxAttempts)
	assert.Equal(t, 10*time.Minute, p.Specialist.Budget)
	assert.Equal(t, "reviews", p.TaskQueue)

	d := PolicyFromConfig(config.ReviewConfig{}, "")
	assert.Equal(t, DefaultSpecialists, d.Specialists)
	assert.Equal(t, 2, d.FindingsPerSpecialist)
}
