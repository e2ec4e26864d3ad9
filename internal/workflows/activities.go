package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/reviewd/internal/events"
	"github.com/fyrsmithlabs/reviewd/internal/secrets"
)

// Activities binds the review capabilities to Temporal activities. Register a
// single instance with the worker; workflows refer to the methods through a nil
// *Activities so only the method names matter.
type Activities struct {
	Fetcher     Fetcher
	Specialist  Specialist
	Challenger  Challenger
	Arbitrator  Arbitrator
	Synthesizer Synthesizer
	Sink        RecordSink

	// Optional collaborators.
	Progress ProgressReporter
	Events   events.Publisher
	Scrubber secrets.Scrubber

	// HeartbeatInterval is how often non-streaming calls record liveness.
	// Specialists heartbeat on partial output instead.
	// Default: 10 seconds
	HeartbeatInterval time.Duration

	// ProgressInterval throttles partial-output signals.
	// Default: 2 seconds
	ProgressInterval time.Duration
}

// FetchArtifact resolves the reference and scrubs secrets from the content.
func (a *Activities) FetchArtifact(ctx context.Context, input FetchInput) (*Artifact, error) {
	start := time.Now()
	art, err := a.Fetcher.Fetch(ctx, input.Reference, input.Context)
	recordActivity(ctx, "fetch_artifact", start, err)
	if err != nil {
		return nil, asActivityError("fetch artifact", err)
	}
	if art == nil {
		return nil, temporal.NewNonRetryableApplicationError("fetcher returned no artifact", ErrTypeNonRetryable, nil)
	}
	if a.Scrubber != nil {
		res := a.Scrubber.Scrub(art.Content)
		if res.HasFindings() {
			activity.GetLogger(ctx).Warn("Secrets redacted from artifact",
				"reference", input.Reference,
				"count", res.TotalFindings,
				"summary", res.Summary())
			art.Content = res.Scrubbed
		}
	}
	return art, nil
}

// RunSpecialist runs one specialist and forwards partial output to the owning
// session. It heartbeats once on start and then only when the model emits
// partial output, so a stalled stream trips the heartbeat timeout.
func (a *Activities) RunSpecialist(ctx context.Context, input SpecialistInput) (*SpecialistOutput, error) {
	info := activity.GetInfo(ctx)
	logger := activity.GetLogger(ctx)
	start := time.Now()

	a.publish(ctx, info.WorkflowExecution.ID, events.TypeSpecialistStarted, map[string]any{
		"specialist": input.Name,
		"attempt":    info.Attempt,
	})
	a.reportProgress(ctx, info.WorkflowExecution.ID, SpecialistProgress{
		Specialist: input.Name,
		Attempt:    int(info.Attempt),
	})

	activity.RecordHeartbeat(ctx)
	throttle := rate.Sometimes{Interval: a.progressInterval()}
	onPartial := func(text string) {
		activity.RecordHeartbeat(ctx, len(text))
		throttle.Do(func() {
			a.reportProgress(ctx, info.WorkflowExecution.ID, SpecialistProgress{
				Specialist:    input.Name,
				Attempt:       int(info.Attempt),
				PartialOutput: text,
			})
		})
	}

	out, err := a.Specialist.Analyze(ctx, input, onPartial)
	recordActivity(ctx, "run_specialist", start, err)
	if err != nil {
		logger.Warn("Specialist attempt failed", "specialist", input.Name, "attempt", info.Attempt, "error", err)
		return nil, asActivityError("run specialist "+input.Name, err)
	}

	if out == nil {
		out = &SpecialistOutput{}
	}
	out.Findings = normalizeFindings(input.Name, out.Findings)
	recordFindings(ctx, input.Name, len(out.Findings))
	a.publish(ctx, info.WorkflowExecution.ID, events.TypeSpecialistCompleted, map[string]any{
		"specialist": input.Name,
		"findings":   len(out.Findings),
	})
	return out, nil
}

// RunChallenger disputes the given findings.
func (a *Activities) RunChallenger(ctx context.Context, input ChallengerInput) (*ChallengerOutput, error) {
	start := time.Now()
	var out *ChallengerOutput
	err := a.withHeartbeat(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.Challenger.Challenge(ctx, input)
		return err
	})
	recordActivity(ctx, "run_challenger", start, err)
	if err != nil {
		return nil, asActivityError("run challenger", err)
	}
	if out == nil {
		out = &ChallengerOutput{}
	}
	return out, nil
}

// RunArbitrator rules on a disputed finding.
func (a *Activities) RunArbitrator(ctx context.Context, input ArbitrationInput) (*ArbitrationOutput, error) {
	start := time.Now()
	var out *ArbitrationOutput
	err := a.withHeartbeat(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.Arbitrator.Arbitrate(ctx, input)
		return err
	})
	recordActivity(ctx, "run_arbitrator", start, err)
	if err != nil {
		return nil, asActivityError("run arbitrator", err)
	}
	if out == nil {
		return nil, errors.New("arbitrator returned no ruling")
	}
	if out.Ruling != RulingUpheld && out.Ruling != RulingOverturned {
		return nil, fmt.Errorf("arbitrator returned unknown ruling %q", out.Ruling)
	}
	return out, nil
}

// RunSynthesis produces the session verdict.
func (a *Activities) RunSynthesis(ctx context.Context, input SynthesisInput) (*SynthesisOutput, error) {
	start := time.Now()
	var out *SynthesisOutput
	err := a.withHeartbeat(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.Synthesizer.Synthesize(ctx, input)
		return err
	})
	recordActivity(ctx, "run_synthesis", start, err)
	if err != nil {
		return nil, asActivityError("run synthesis", err)
	}
	if out == nil {
		out = &SynthesisOutput{}
	}
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = fallbackSummary(input)
	}
	return out, nil
}

// PersistRecord appends the completed session to the sink.
func (a *Activities) PersistRecord(ctx context.Context, input PersistInput) error {
	start := time.Now()
	err := a.Sink.Append(ctx, input)
	recordActivity(ctx, "persist_record", start, err)
	if err != nil {
		return asActivityError("persist record", err)
	}
	recordSession(ctx, input.Verdict != nil)
	a.publish(ctx, input.SessionID, events.TypeSessionPersisted, map[string]any{
		"title": input.Title,
	})
	return nil
}

// PublishEvent forwards a workflow progress event. Failures are logged and
// swallowed.
func (a *Activities) PublishEvent(ctx context.Context, ev events.Event) error {
	if a.Events == nil {
		return nil
	}
	if err := a.Events.Publish(ctx, ev); err != nil {
		activity.GetLogger(ctx).Warn("Failed to publish review event (non-fatal)", "type", ev.Type, "error", err)
	}
	return nil
}

// withHeartbeat runs fn while recording a heartbeat every HeartbeatInterval.
// The heartbeat stops as soon as fn returns. Only for calls that produce no
// incremental output; specialists heartbeat from their partial stream.
func (a *Activities) withHeartbeat(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan struct{})
	defer close(done)

	interval := a.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return fn(ctx)
}

func (a *Activities) progressInterval() time.Duration {
	if a.ProgressInterval > 0 {
		return a.ProgressInterval
	}
	return 2 * time.Second
}

func (a *Activities) reportProgress(ctx context.Context, workflowID string, p SpecialistProgress) {
	if a.Progress == nil {
		return
	}
	if err := a.Progress.ReportProgress(ctx, workflowID, p); err != nil {
		activity.GetLogger(ctx).Debug("Progress report dropped", "specialist", p.Specialist, "error", err)
	}
}

func (a *Activities) publish(ctx context.Context, workflowID, typ string, data map[string]any) {
	if a.Events == nil {
		return
	}
	ev := events.Event{SessionID: workflowID, Type: typ, Time: time.Now().UTC(), Data: data}
	if err := a.Events.Publish(ctx, ev); err != nil {
		activity.GetLogger(ctx).Debug("Event publish failed", "type", typ, "error", err)
	}
}

// asActivityError marks permanent collaborator failures as non-retryable so
// Temporal stops retrying them.
func asActivityError(operation string, err error) error {
	if errors.Is(err, ErrPermanent) {
		return temporal.NewNonRetryableApplicationError(FormatErrorForResult(operation, err), ErrTypeNonRetryable, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// normalizeFindings assigns stable IDs in emission order and coerces unknown
// severities to minor.
func normalizeFindings(specialist string, in []Finding) []Finding {
	out := make([]Finding, 0, len(in))
	for i, f := range in {
		f.ID = fmt.Sprintf("%s-%d", specialist, i+1)
		f.Specialist = specialist
		if f.Severity.Rank() > SeverityMinor.Rank() {
			f.Severity = SeverityMinor
		}
		out = append(out, f)
	}
	return out
}

func fallbackSummary(in SynthesisInput) string {
	if len(in.Findings) == 0 {
		return "No findings were raised."
	}
	return fmt.Sprintf("%d findings reviewed, %d disputed.", len(in.Findings), len(in.Disputes))
}
