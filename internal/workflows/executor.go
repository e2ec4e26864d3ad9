package workflows

import (
	"errors"
	"strings"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ErrTypeNonRetryable marks capability failures that retrying cannot fix, such
// as an unknown reference. Activities wrap these with
// temporal.NewNonRetryableApplicationError.
const ErrTypeNonRetryable = "NonRetryable"

// TaskOutcome is the terminal result of one task: exhaustion is reported as
// data rather than as an error the caller has to unwind.
type TaskOutcome struct {
	Status SlotStatus
	Err    error
}

// OK reports whether the task completed.
func (o TaskOutcome) OK() bool {
	return o.Status == SlotComplete
}

// ActivityOptions maps the policy onto Temporal's retry and timeout settings.
// Temporal owns the retry loop: a missed heartbeat or an attempt past
// PerAttemptTimeout is abandoned and retried after
// InitialBackoff * BackoffMultiplier^(attempt-1).
func (p TaskPolicy) ActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout:    p.PerAttemptTimeout,
		ScheduleToCloseTimeout: p.Budget,
		HeartbeatTimeout:       p.HeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        p.InitialBackoff,
			BackoffCoefficient:     p.BackoffMultiplier,
			MaximumInterval:        p.MaximumBackoff,
			MaximumAttempts:        p.MaxAttempts,
			NonRetryableErrorTypes: []string{ErrTypeNonRetryable},
		},
	}
}

// startTask dispatches an activity under the policy and returns its future.
func startTask(ctx workflow.Context, p TaskPolicy, activity interface{}, args ...interface{}) workflow.Future {
	return workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, p.ActivityOptions()), activity, args...)
}

// runTask dispatches an activity and blocks until it is terminal, decoding the
// result into valuePtr on success.
func runTask(ctx workflow.Context, p TaskPolicy, valuePtr interface{}, activity interface{}, args ...interface{}) TaskOutcome {
	return outcomeOf(startTask(ctx, p, activity, args...).Get(ctx, valuePtr))
}

func outcomeOf(err error) TaskOutcome {
	return TaskOutcome{Status: ClassifyTaskError(err), Err: err}
}

// ClassifyTaskError maps an activity error to the slot status observers see.
// A timeout on the final attempt, or on the overall budget, is timed-out;
// anything else is failed.
func ClassifyTaskError(err error) SlotStatus {
	switch {
	case err == nil:
		return SlotComplete
	case temporal.IsTimeoutError(err):
		return SlotTimedOut
	default:
		return SlotFailed
	}
}

// DescribeTaskError renders a task failure for observers without the SDK's
// wrapping noise.
func DescribeTaskError(err error) string {
	if err == nil {
		return ""
	}
	if temporal.IsTimeoutError(err) {
		return "timed out"
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		msg := appErr.Error()
		if i := strings.LastIndex(msg, " (type: "); i > 0 {
			msg = msg[:i]
		}
		return msg
	}
	return err.Error()
}
