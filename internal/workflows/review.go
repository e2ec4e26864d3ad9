package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/reviewd/internal/events"
)

// ReviewWorkflow runs one review session from fetch to verdict.
//
// Pipeline:
//  1. Fetch the artifact (failure ends the session with FetchError set)
//  2. Run every specialist in parallel and join on all of them
//  3. Spawn one DisputeWorkflow per surviving finding and open the challenge window
//  4. Deliver human challenges once the window closes, then join on the disputes
//  5. Synthesize the verdict and persist the record
//
// The workflow checkpoints with continue-as-new before step 3 and before
// step 5 when its history has grown past the policy threshold. A resumed
// execution skips everything its snapshot already finished.
func ReviewWorkflow(ctx workflow.Context, input ReviewInput) (*ReviewState, error) {
	r, err := newReviewRun(ctx, input)
	if err != nil {
		return nil, err
	}

	// Handlers go in before anything can block.
	if err := r.registerHandlers(); err != nil {
		return nil, err
	}

	if r.state.Status == StatusComplete {
		r.logger.Info("Session already complete, nothing to resume", "session_id", r.state.SessionID)
		return r.state.Clone(), nil
	}
	return r.run()
}

// reviewRun is the single writer of the session state for one execution.
type reviewRun struct {
	ctx    workflow.Context
	logger log.Logger
	req    ReviewRequest
	state  *ReviewState
	acts   *Activities

	// events counts state transitions recorded by this execution.
	events int

	children       map[string]workflow.ChildWorkflowFuture
	humanDelivered bool

	extendCh   workflow.ReceiveChannel
	reportCh   workflow.ReceiveChannel
	progressCh workflow.ReceiveChannel
}

func newReviewRun(ctx workflow.Context, input ReviewInput) (*reviewRun, error) {
	info := workflow.GetInfo(ctx)
	req := input.Request

	var st *ReviewState
	if input.Snapshot != nil {
		st = input.Snapshot.Clone()
		st.upgrade()
	} else {
		req.Policy.ApplyDefaults()
		if err := req.Validate(); err != nil {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNonRetryable, err)
		}
		st = NewReviewState(req, workflow.Now(ctx))
	}
	st.Meta.WorkflowID = info.WorkflowExecution.ID
	st.Meta.RunID = info.WorkflowExecution.RunID

	return &reviewRun{
		ctx:        ctx,
		logger:     workflow.GetLogger(ctx),
		req:        req,
		state:      st,
		children:   make(map[string]workflow.ChildWorkflowFuture),
		extendCh:   workflow.GetSignalChannel(ctx, SignalExtendWindow),
		reportCh:   workflow.GetSignalChannel(ctx, SignalChallengerResult),
		progressCh: workflow.GetSignalChannel(ctx, SignalSpecialistProgress),
	}, nil
}

func (r *reviewRun) registerHandlers() error {
	ctx := r.ctx

	if err := workflow.SetQueryHandler(ctx, QueryGetState, func() (*ReviewState, error) {
		return r.state.Clone(), nil
	}); err != nil {
		return fmt.Errorf("failed to register state query: %w", err)
	}

	if err := workflow.SetUpdateHandlerWithOptions(ctx, UpdateSubmitChallenges, r.onSubmitChallenges,
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, req SubmitChallengesRequest) error {
				return req.Validate()
			},
		},
	); err != nil {
		return fmt.Errorf("failed to register submit update: %w", err)
	}

	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			r.extendCh.Receive(ctx, nil)
			r.onExtendWindow()
		}
	})
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var report ChallengerReport
			r.reportCh.Receive(ctx, &report)
			r.onChallengerReport(report)
		}
	})
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var p SpecialistProgress
			r.progressCh.Receive(ctx, &p)
			r.onProgress(p)
		}
	})
	return nil
}

func (r *reviewRun) run() (*ReviewState, error) {
	st := r.state

	if st.Phase == PhaseFetching {
		r.fetch()
	}
	if st.Phase == PhaseFetchFailed {
		return r.complete()
	}

	if st.Phase == PhaseSpecialistsRunning {
		if err := r.runSpecialists(); err != nil {
			return nil, err
		}
	}

	if st.Phase == PhaseSpecialistsJoined {
		if err := r.checkpoint(PhaseSpecialistsJoined); err != nil {
			return nil, err
		}
		if err := r.runDisputes(); err != nil {
			return nil, err
		}
	}

	if st.Phase != PhaseSynthesizing {
		return nil, NewWorkflowError("resume", ErrorSeverityCritical, ErrInvariant,
			fmt.Sprintf("unexpected phase %q", st.Phase))
	}
	if err := r.checkpoint(PhaseSynthesizing); err != nil {
		return nil, err
	}
	if err := r.synthesize(); err != nil {
		return nil, err
	}
	return r.complete()
}

// fetch resolves the artifact. A failure is recorded, never returned.
func (r *reviewRun) fetch() {
	st := r.state
	now := workflow.Now(r.ctx)
	st.startPhase("fetch", now)
	r.publish(events.TypePhaseChanged, map[string]any{"phase": PhaseFetching})

	var art Artifact
	outcome := runTask(r.ctx, st.Policy.Fetch, &art, r.acts.FetchArtifact, FetchInput{
		Reference: st.Reference,
		Context:   st.Context,
	})
	st.endPhase("fetch", workflow.Now(r.ctx))

	if !outcome.OK() {
		st.FetchError = DescribeTaskError(outcome.Err)
		st.Phase = PhaseFetchFailed
		r.recordEvent()
		r.logger.Error("Fetch failed, ending session", "reference", st.Reference, "error", outcome.Err)
		return
	}
	st.Artifact = &art
	st.Phase = PhaseSpecialistsRunning
	r.recordEvent()
	r.logger.Info("Artifact fetched", "title", art.Title, "source", art.SourceLabel)
}

// runSpecialists runs all specialists under one barrier. A specialist that
// times out or exhausts its retries is recorded and never blocks the join.
func (r *reviewRun) runSpecialists() error {
	st := r.state
	st.startPhase("specialists", workflow.Now(r.ctx))
	r.publish(events.TypePhaseChanged, map[string]any{"phase": PhaseSpecialistsRunning})

	barrier := NewJoinBarrier(r.ctx)
	for _, name := range st.Policy.Specialists {
		slot := st.Specialists[name]
		if slot.Status.Terminal() {
			continue
		}
		running := *slot
		running.Status = SlotRunning
		if running.Attempt == 0 {
			running.Attempt = 1
		}
		st.Specialists[name] = &running

		f := startTask(r.ctx, st.Policy.Specialist, r.acts.RunSpecialist, SpecialistInput{
			Name:    name,
			Content: st.Artifact.Content,
			Context: st.Context,
		})
		barrier.Add(f, func(f workflow.Future) {
			var out SpecialistOutput
			r.foldSpecialist(name, out, outcomeOf(f.Get(r.ctx, &out)))
			r.logger.Info("Specialist settled",
				"specialist", name,
				"status", st.Specialists[name].Status,
				"done", barrier.Done(),
				"total", barrier.Total())
		})
	}
	if err := barrier.Wait(r.ctx); err != nil {
		return err
	}

	st.endPhase("specialists", workflow.Now(r.ctx))
	st.Phase = PhaseSpecialistsJoined
	r.recordEvent()
	return nil
}

func (r *reviewRun) foldSpecialist(name string, out SpecialistOutput, outcome TaskOutcome) {
	next := *r.state.Specialists[name]
	next.Status = outcome.Status
	if outcome.OK() {
		next.Findings = append([]Finding{}, out.Findings...)
		next.RawText = out.RawText
		next.Error = ""
	} else {
		next.Findings = nil
		next.Error = DescribeTaskError(outcome.Err)
	}
	r.state.Specialists[name] = &next
	r.recordEvent()
	r.publish(events.TypeSpecialistSettled, map[string]any{
		"specialist": name,
		"status":     next.Status,
		"findings":   len(next.Findings),
	})
}

// runDisputes fans out one saga per surviving finding, holds the shared
// window open until it closes, then delivers the human input and joins.
func (r *reviewRun) runDisputes() error {
	st := r.state
	ctx := r.ctx

	findings := st.SurvivingFindings()
	if len(findings) == 0 {
		r.logger.Info("No findings survived, skipping disputes")
		st.Phase = PhaseSynthesizing
		r.recordEvent()
		return nil
	}

	st.Phase = PhaseDisputesRunning
	st.startPhase("disputes", workflow.Now(ctx))
	r.publish(events.TypePhaseChanged, map[string]any{"phase": PhaseDisputesRunning, "disputes": len(findings)})

	for _, f := range findings {
		childID := fmt.Sprintf("%s-dispute-%s", st.Meta.WorkflowID, f.ID)
		cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: childID,
			TaskQueue:  st.Policy.TaskQueue,
		})
		r.children[f.ID] = workflow.ExecuteChildWorkflow(cctx, DisputeWorkflow, DisputeInput{
			SessionID: st.SessionID,
			Finding:   f,
			Content:   st.Artifact.Content,
			Policy:    st.Policy,
		})
		st.Disputes = append(st.Disputes, DisputeRecord{
			Finding:    f,
			WorkflowID: childID,
			Status:     DisputeStarted,
			Phase:      DisputeChallenging,
		})
		if st.Window.OpenFor(workflow.Now(ctx), st.Policy.WindowDuration) {
			r.logger.Info("Challenge window opened", "deadline", st.Window.Deadline)
			r.publish(events.TypeWindowOpened, map[string]any{"deadline": st.Window.Deadline})
		}
		r.recordEvent()
	}

	// Wait for every saga to start so later signals go out in the order they
	// are issued.
	for _, d := range st.Disputes {
		if err := r.children[d.Finding.ID].GetChildWorkflowExecution().Get(ctx, nil); err != nil {
			r.logger.Warn("Dispute failed to start", "finding_id", d.Finding.ID, "error", err)
		}
	}

	if err := r.awaitWindow(); err != nil {
		return err
	}
	r.deliverHumanChallenges()

	barrier := NewJoinBarrier(ctx)
	for _, d := range st.Disputes {
		id := d.Finding.ID
		barrier.Add(r.children[id], func(f workflow.Future) {
			var res DisputeResult
			r.foldDispute(id, res, f.Get(ctx, &res))
		})
	}
	if err := barrier.Wait(ctx); err != nil {
		return err
	}

	st.endPhase("disputes", workflow.Now(ctx))
	st.Phase = PhaseSynthesizing
	r.recordEvent()
	return nil
}

// awaitWindow blocks until the window closes. The deadline is re-read after
// every wake because an extension can land mid-wait.
func (r *reviewRun) awaitWindow() error {
	w := &r.state.Window
	for w.Open {
		now := workflow.Now(r.ctx)
		remaining := w.Remaining(now)
		if remaining <= 0 {
			w.Close(now)
			r.recordEvent()
			r.logger.Info("Challenge window expired")
			break
		}
		deadline := w.Deadline
		if _, err := workflow.AwaitWithTimeout(r.ctx, remaining, func() bool {
			return !w.Open || !w.Deadline.Equal(deadline)
		}); err != nil {
			return err
		}
	}
	r.publish(events.TypeWindowClosed, map[string]any{"human_challenges": len(w.HumanChallenges)})
	return nil
}

// deliverHumanChallenges sends every saga the window's text for its finding,
// or nil. All signals are issued before the first one is awaited.
func (r *reviewRun) deliverHumanChallenges() {
	st := r.state
	r.humanDelivered = true

	sent := make([]workflow.Future, len(st.Disputes))
	for i := range st.Disputes {
		id := st.Disputes[i].Finding.ID
		text := st.Window.HumanText(id)
		st.Disputes[i].HumanChallenge = text
		sent[i] = r.children[id].SignalChildWorkflow(r.ctx, SignalHumanChallenge, HumanChallenge{Text: text})
	}
	r.recordEvent()
	for i, f := range sent {
		if err := f.Get(r.ctx, nil); err != nil {
			r.logger.Warn("Human challenge not delivered", "finding_id", st.Disputes[i].Finding.ID, "error", err)
		}
	}
}

func (r *reviewRun) foldDispute(findingID string, res DisputeResult, err error) {
	st := r.state
	i := st.disputeIndex(findingID)
	if i < 0 {
		return
	}
	next := st.Disputes[i].clone()
	next.Phase = DisputeDone
	if err != nil {
		r.logger.Warn("Dispute failed, upholding finding", "finding_id", findingID, "error", err)
		next.Status = DisputeFailed
		next.Ruling = RulingUpheld
		next.Reasoning = FormatErrorForResult("dispute failed", fmt.Errorf("%s", DescribeTaskError(err)))
		if next.Challenger == nil {
			next.Challenger = &ChallengerResult{Verdict: ChallengeAgree, Failed: true}
		}
		next.ChallengeSources = challengeSources(next.Challenger.Challenge, next.HumanChallenge)
	} else {
		challenger := res.Challenger
		next.Status = DisputeComplete
		next.Challenger = &challenger
		next.HumanChallenge = res.HumanChallenge
		next.Ruling = res.Ruling
		next.Reasoning = res.Reasoning
		next.Stances = res.Stances
		next.ChallengeSources = res.ChallengeSources
	}
	st.Disputes[i] = next
	r.recordEvent()
	r.publish(events.TypeDisputeSettled, map[string]any{
		"finding_id": findingID,
		"ruling":     next.Ruling,
		"status":     next.Status,
	})
}

// synthesize waits for in-flight handlers, then reconciles findings. A failed
// synthesis leaves the verdict empty.
func (r *reviewRun) synthesize() error {
	st := r.state
	ctx := r.ctx

	if err := workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
		return err
	}

	st.startPhase("synthesis", workflow.Now(ctx))
	r.publish(events.TypePhaseChanged, map[string]any{"phase": PhaseSynthesizing})

	input := SynthesisInput{
		Findings: AllFindings(st.Policy.Specialists, st.Specialists),
		Disputes: make([]DisputeOutcome, 0, len(st.Disputes)),
	}
	for _, d := range st.Disputes {
		input.Disputes = append(input.Disputes, DisputeOutcome{
			FindingID:        d.Finding.ID,
			Ruling:           d.Ruling,
			Reasoning:        d.Reasoning,
			ChallengeSources: d.ChallengeSources,
		})
	}

	var out SynthesisOutput
	outcome := runTask(ctx, st.Policy.Synthesis, &out, r.acts.RunSynthesis, input)
	st.endPhase("synthesis", workflow.Now(ctx))
	if outcome.OK() {
		st.Verdict = &Verdict{Findings: out.Findings, Summary: out.Summary}
		if st.Verdict.Findings == nil {
			st.Verdict.Findings = []VerdictFinding{}
		}
	} else {
		r.logger.Warn("Synthesis failed (non-fatal)", "error", outcome.Err)
		st.SynthesisError = DescribeTaskError(outcome.Err)
	}
	r.recordEvent()
	return nil
}

// complete marks the session finished and persists it. Persistence failures
// are logged and dropped.
func (r *reviewRun) complete() (*ReviewState, error) {
	st := r.state
	ctx := r.ctx

	st.Status = StatusComplete
	st.Phase = PhaseComplete
	st.Meta.CompletedAt = workflow.Now(ctx)
	r.recordEvent()

	if st.Artifact != nil {
		outcome := runTask(ctx, st.Policy.Persist, nil, r.acts.PersistRecord, PersistInput{
			SessionID:   st.SessionID,
			Reference:   st.Reference,
			Title:       st.Artifact.Title,
			Verdict:     st.Verdict,
			StartedAt:   st.Meta.StartedAt,
			CompletedAt: st.Meta.CompletedAt,
			Timings:     st.Clone().Meta.PhaseTimings,
		})
		if !outcome.OK() {
			r.logger.Warn("Failed to persist review record (non-fatal)", "error", outcome.Err)
		}
	}

	r.publish(events.TypeSessionCompleted, map[string]any{
		"fetch_error": st.FetchError,
		"verdict":     st.Verdict != nil,
	})
	if err := workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
		return nil, err
	}
	r.logger.Info("Review complete",
		"session_id", st.SessionID,
		"disputes", len(st.Disputes),
		"checkpoints", st.Meta.Checkpoints)
	return st.Clone(), nil
}

// Handlers. Each one is a no-op once the session is complete.

func (r *reviewRun) onExtendWindow() {
	if r.state.Status == StatusComplete {
		return
	}
	if r.state.Window.Extend(r.state.Policy.WindowExtension) {
		r.recordEvent()
		r.logger.Info("Challenge window extended", "deadline", r.state.Window.Deadline)
		r.publish(events.TypeWindowExtended, map[string]any{"deadline": r.state.Window.Deadline})
	}
}

func (r *reviewRun) onChallengerReport(report ChallengerReport) {
	if r.state.Status == StatusComplete {
		return
	}
	i := r.state.disputeIndex(report.FindingID)
	if i < 0 || r.state.Disputes[i].Phase == DisputeDone {
		return
	}
	next := r.state.Disputes[i].clone()
	result := report.Result
	next.Challenger = &result
	next.Phase = DisputeAwaitingHuman
	r.state.Disputes[i] = next
	r.recordEvent()
}

func (r *reviewRun) onProgress(p SpecialistProgress) {
	if r.state.Status == StatusComplete {
		return
	}
	slot, ok := r.state.Specialists[p.Specialist]
	if !ok || slot.Status.Terminal() {
		return
	}
	next := *slot
	next.Status = SlotRunning
	if p.Attempt > next.Attempt {
		next.Attempt = p.Attempt
		next.PartialOutput = ""
	}
	if p.PartialOutput != "" {
		next.PartialOutput = p.PartialOutput
	}
	r.state.Specialists[p.Specialist] = &next
}

// onSubmitChallenges always accepts while the session is running. Text for a
// finding replaces earlier text until that finding's arbitration starts.
func (r *reviewRun) onSubmitChallenges(ctx workflow.Context, req SubmitChallengesRequest) (SubmitChallengesResult, error) {
	st := r.state
	if st.Status == StatusComplete {
		return SubmitChallengesResult{Accepted: false}, nil
	}

	changed := st.Window.Record(req.Challenges)
	if st.Window.Close(workflow.Now(ctx)) {
		r.logger.Info("Challenge window closed by submission", "challenges", len(req.Challenges))
	}
	r.recordEvent()

	if r.humanDelivered {
		// Late submission: forward to sagas that have not reached a ruling.
		for _, id := range changed {
			i := st.disputeIndex(id)
			child, ok := r.children[id]
			if i < 0 || !ok || st.Disputes[i].Phase == DisputeDone {
				continue
			}
			text := st.Window.HumanText(id)
			st.Disputes[i].HumanChallenge = text
			if err := child.SignalChildWorkflow(ctx, SignalHumanChallenge, HumanChallenge{Text: text}).Get(ctx, nil); err != nil {
				r.logger.Debug("Late challenge not delivered", "finding_id", id, "error", err)
			}
		}
	}
	return SubmitChallengesResult{Accepted: true}, nil
}

func (r *reviewRun) recordEvent() {
	r.events++
	r.state.Meta.EventLogLength++
}

// publish emits a progress event without waiting on it.
func (r *reviewRun) publish(typ string, data map[string]any) {
	ctx := workflow.WithActivityOptions(r.ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	workflow.ExecuteActivity(ctx, r.acts.PublishEvent, events.Event{
		SessionID: r.state.SessionID,
		Type:      typ,
		Time:      workflow.Now(r.ctx),
		Data:      data,
	})
}
