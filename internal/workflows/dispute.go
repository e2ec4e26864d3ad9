package workflows

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/workflow"
)

// DisputeWorkflow coordinates the challenge and arbitration of one finding.
//
// Phases:
//  1. challenging: run the automated challenger (failure means no challenge)
//  2. awaiting-human: wait for the parent to deliver the human's challenge,
//     which happens once the shared window has closed
//  3. arbitrating: only when someone challenged the finding
//  4. done
//
// The human-challenge channel and phase query are set up before the first
// activity is scheduled so nothing the parent sends is lost.
func DisputeWorkflow(ctx workflow.Context, input DisputeInput) (*DisputeResult, error) {
	logger := workflow.GetLogger(ctx)
	finding := input.Finding

	phase := DisputeChallenging
	humanCh := workflow.GetSignalChannel(ctx, SignalHumanChallenge)
	if err := workflow.SetQueryHandler(ctx, QueryGetPhase, func() (DisputePhase, error) {
		return phase, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register phase query: %w", err)
	}

	logger.Info("Starting dispute", "finding_id", finding.ID, "severity", finding.Severity)

	var a *Activities
	result := &DisputeResult{FindingID: finding.ID}

	// Phase 1: automated challenger
	var challenged ChallengerOutput
	outcome := runTask(ctx, input.Policy.Challenger, &challenged, a.RunChallenger, ChallengerInput{
		FindingsBySpecialist: map[string][]Finding{finding.Specialist: {finding}},
		CapPerSpecialist:     1,
	})
	if !outcome.OK() {
		logger.Warn("Challenger failed (non-fatal)", "finding_id", finding.ID, "error", outcome.Err)
	}
	result.Challenger = challengerResultFor(finding.ID, challenged, outcome)
	reportChallengerResult(ctx, ChallengerReport{FindingID: finding.ID, Result: result.Challenger})

	// Phase 2: wait for the parent to forward the human's input. Anything that
	// arrives before arbitration is dispatched replaces the earlier text.
	phase = DisputeAwaitingHuman
	var human HumanChallenge
	humanCh.Receive(ctx, &human)
	drainHumanChallenges(humanCh, &human)
	result.HumanChallenge = nonBlank(human.Text)

	result.ChallengeSources = challengeSources(result.Challenger.Challenge, result.HumanChallenge)
	if len(result.ChallengeSources) == 0 {
		result.Ruling = RulingAccepted
		result.Reasoning = "No challenge was raised against this finding."
		phase = DisputeDone
		logger.Info("Dispute accepted without arbitration", "finding_id", finding.ID)
		return result, nil
	}

	// Phase 3: arbitration
	phase = DisputeArbitrating
	var ruling ArbitrationOutput
	outcome = runTask(ctx, input.Policy.Arbitration, &ruling, a.RunArbitrator, ArbitrationInput{
		Finding:        finding,
		Content:        input.Content,
		ChallengerText: result.Challenger.Challenge,
		HumanText:      result.HumanChallenge,
	})
	if outcome.OK() {
		result.Ruling = ruling.Ruling
		result.Reasoning = ruling.Reasoning
		result.Stances = stancesFor(result.ChallengeSources, ruling.Stances)
	} else {
		logger.Warn("Arbitration failed, upholding finding", "finding_id", finding.ID, "error", outcome.Err)
		result.Ruling = RulingUpheld
		result.Reasoning = ArbitratorUnavailable
	}

	phase = DisputeDone
	logger.Info("Dispute complete", "finding_id", finding.ID, "ruling", result.Ruling)
	return result, nil
}

// challengerResultFor extracts this finding's challenge from the challenger
// output. A failed challenger counts as agreement.
func challengerResultFor(findingID string, out ChallengerOutput, outcome TaskOutcome) ChallengerResult {
	if !outcome.OK() {
		return ChallengerResult{Verdict: ChallengeAgree, Failed: true}
	}
	for _, c := range out.Challenges {
		if c.FindingID != findingID {
			continue
		}
		verdict := c.Verdict
		if verdict == "" {
			verdict = ChallengeDisagree
		}
		if verdict == ChallengeAgree || strings.TrimSpace(c.Text) == "" {
			return ChallengerResult{Verdict: ChallengeAgree}
		}
		text := c.Text
		return ChallengerResult{Challenge: &text, Verdict: verdict}
	}
	return ChallengerResult{Verdict: ChallengeAgree}
}

// reportChallengerResult pushes the interim result to the parent for live
// display. The parent may already be gone, so failures are ignored.
func reportChallengerResult(ctx workflow.Context, report ChallengerReport) {
	parent := workflow.GetInfo(ctx).ParentWorkflowExecution
	if parent == nil {
		return
	}
	err := workflow.SignalExternalWorkflow(ctx, parent.ID, "", SignalChallengerResult, report).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Debug("Challenger report not delivered", "finding_id", report.FindingID, "error", err)
	}
}

func drainHumanChallenges(ch workflow.ReceiveChannel, human *HumanChallenge) {
	for {
		var later HumanChallenge
		if !ch.ReceiveAsync(&later) {
			return
		}
		if later.Text != nil {
			*human = later
		}
	}
}

func challengeSources(challenger, human *string) []string {
	var sources []string
	if challenger != nil {
		sources = append(sources, SourceChallenger)
	}
	if human != nil {
		sources = append(sources, SourceHuman)
	}
	return sources
}

// stancesFor keeps only the stances for sources that actually challenged.
func stancesFor(sources []string, stances map[string]Stance) map[string]Stance {
	if len(stances) == 0 {
		return nil
	}
	out := make(map[string]Stance, len(sources))
	for _, src := range sources {
		if s, ok := stances[src]; ok {
			out[src] = s
		}
	}
	return out
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
