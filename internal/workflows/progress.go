package workflows

import (
	"context"

	"go.temporal.io/sdk/client"
)

// SignalProgressReporter delivers specialist progress to the owning review
// workflow as a signal.
type SignalProgressReporter struct {
	client client.Client
}

// NewSignalProgressReporter creates a reporter backed by a Temporal client.
func NewSignalProgressReporter(c client.Client) *SignalProgressReporter {
	return &SignalProgressReporter{client: c}
}

// ReportProgress signals the workflow. The run ID is left empty so the latest
// run receives it, including one started by a checkpoint.
func (r *SignalProgressReporter) ReportProgress(ctx context.Context, workflowID string, p SpecialistProgress) error {
	return r.client.SignalWorkflow(ctx, workflowID, "", SignalSpecialistProgress, p)
}
