package workflows

import (
	"go.temporal.io/sdk/workflow"
)

// checkpoint continues the session as a new execution when the event log has
// grown past the threshold. Each phase checkpoints at most once.
func (r *reviewRun) checkpoint(at Phase) error {
	st := r.state
	if st.Meta.LastCheckpointPhase == at {
		return nil
	}
	info := workflow.GetInfo(r.ctx)
	length := info.GetCurrentHistoryLength()
	if r.events > length {
		length = r.events
	}
	if !shouldCheckpoint(length, st.Policy.CheckpointThreshold, info.GetContinueAsNewSuggested()) {
		return nil
	}

	r.drainSignals()
	if err := workflow.Await(r.ctx, func() bool { return workflow.AllHandlersFinished(r.ctx) }); err != nil {
		return err
	}

	st.Meta.Checkpoints++
	st.Meta.LastCheckpointPhase = at
	r.logger.Info("Checkpointing session",
		"phase", at,
		"event_log_length", length,
		"checkpoints", st.Meta.Checkpoints)
	return workflow.NewContinueAsNewError(r.ctx, ReviewWorkflow, ReviewInput{
		Request:  r.req,
		Snapshot: st.Clone(),
	})
}

// drainSignals applies buffered signals so none are dropped by continue-as-new.
func (r *reviewRun) drainSignals() {
	for r.extendCh.ReceiveAsync(nil) {
		r.onExtendWindow()
	}
	for {
		var report ChallengerReport
		if !r.reportCh.ReceiveAsync(&report) {
			break
		}
		r.onChallengerReport(report)
	}
	for {
		var p SpecialistProgress
		if !r.progressCh.ReceiveAsync(&p) {
			break
		}
		r.onProgress(p)
	}
}

// shouldCheckpoint reports whether the log length exceeds the threshold or the
// server has asked for a new run. A log exactly at the threshold stays put.
func shouldCheckpoint(length, threshold int, suggested bool) bool {
	return suggested || length > threshold
}
