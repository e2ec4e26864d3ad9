// Package workflows provides the Temporal workflows that drive a review session.
//
// This file contains the session snapshot and the payload types shared by the
// orchestrator, the dispute sagas and the activities.
package workflows

import (
	"time"
)

// SnapshotVersion is the current ReviewState schema version. Fields are only
// ever added, so snapshots written by older versions still decode.
const SnapshotVersion = 1

// SessionStatus is the lifecycle status of a review session.
type SessionStatus string

const (
	StatusRunning  SessionStatus = "running"
	StatusComplete SessionStatus = "complete"
)

// Phase names the orchestrator's position in the pipeline.
type Phase string

const (
	PhaseFetching           Phase = "fetching"
	PhaseFetchFailed        Phase = "fetch-failed"
	PhaseSpecialistsRunning Phase = "specialists-running"
	PhaseSpecialistsJoined  Phase = "specialists-joined"
	PhaseDisputesRunning    Phase = "disputes-running"
	PhaseSynthesizing       Phase = "synthesizing"
	PhaseComplete           Phase = "complete"
)

// SlotStatus is the status of one specialist task.
type SlotStatus string

const (
	SlotPending  SlotStatus = "pending"
	SlotRunning  SlotStatus = "running"
	SlotComplete SlotStatus = "complete"
	SlotTimedOut SlotStatus = "timed-out"
	SlotFailed   SlotStatus = "failed"
)

// Terminal reports whether the slot has reached a final status.
func (s SlotStatus) Terminal() bool {
	return s == SlotComplete || s == SlotTimedOut || s == SlotFailed
}

// Severity of a finding. Lower rank sorts first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Rank orders severities critical < major < minor; unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// DisputeStatus is the child-saga status recorded on a DisputeRecord.
type DisputeStatus string

const (
	DisputeStarted  DisputeStatus = "started"
	DisputeComplete DisputeStatus = "complete"
	DisputeFailed   DisputeStatus = "failed"
)

// DisputePhase is the saga's state machine position.
type DisputePhase string

const (
	DisputeChallenging   DisputePhase = "challenging"
	DisputeAwaitingHuman DisputePhase = "awaiting-human"
	DisputeArbitrating   DisputePhase = "arbitrating"
	DisputeDone          DisputePhase = "done"
)

// ChallengeVerdict is the automated challenger's position on a finding.
type ChallengeVerdict string

const (
	ChallengeAgree    ChallengeVerdict = "agree"
	ChallengeDisagree ChallengeVerdict = "disagree"
	ChallengePartial  ChallengeVerdict = "partial"
)

// Ruling is the final outcome of a dispute.
type Ruling string

const (
	RulingUpheld     Ruling = "upheld"
	RulingOverturned Ruling = "overturned"
	RulingAccepted   Ruling = "accepted"
)

// Stance is the arbitrator's position relative to one challenge source.
type Stance string

const (
	StanceAgrees    Stance = "agrees"
	StanceDisagrees Stance = "disagrees"
	StanceMixed     Stance = "mixed"
)

// Challenge sources.
const (
	SourceChallenger = "challenger"
	SourceHuman      = "human"
)

// ReviewRequest is the caller-supplied input that seeds a session.
type ReviewRequest struct {
	SessionID string       `json:"session_id"`
	Reference string       `json:"reference"`
	Context   string       `json:"context,omitempty"`
	Policy    ReviewPolicy `json:"policy"`
}

// ReviewInput is the orchestrator's workflow argument. Snapshot is set when the
// execution is resumed from a checkpoint.
type ReviewInput struct {
	Request  ReviewRequest `json:"request"`
	Snapshot *ReviewState  `json:"snapshot,omitempty"`
}

// ReviewState is the session aggregate. It is owned by the orchestrator and
// replaced, never shared, when exposed through queries.
type ReviewState struct {
	SchemaVersion  int                        `json:"schema_version"`
	SessionID      string                     `json:"session_id"`
	Reference      string                     `json:"reference"`
	Context        string                     `json:"context,omitempty"`
	Status         SessionStatus              `json:"status"`
	Phase          Phase                      `json:"phase"`
	Artifact       *Artifact                  `json:"artifact,omitempty"`
	FetchError     string                     `json:"fetch_error,omitempty"`
	Specialists    map[string]*SpecialistSlot `json:"specialists"`
	Disputes       []DisputeRecord            `json:"disputes"`
	Window         ChallengeWindow            `json:"window"`
	Verdict        *Verdict                   `json:"verdict,omitempty"`
	SynthesisError string                     `json:"synthesis_error,omitempty"`
	Policy         ReviewPolicy               `json:"policy"`
	Meta           RuntimeMeta                `json:"meta"`
}

// SpecialistSlot tracks one specialist task. Findings is non-nil only when the
// slot is complete.
type SpecialistSlot struct {
	Name          string     `json:"name"`
	Status        SlotStatus `json:"status"`
	Attempt       int        `json:"attempt"`
	PartialOutput string     `json:"partial_output,omitempty"`
	Findings      []Finding  `json:"findings"`
	RawText       string     `json:"raw_text,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Finding is a single flagged issue produced by a specialist.
type Finding struct {
	ID             string   `json:"id"`
	Specialist     string   `json:"specialist"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Location       string   `json:"location,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// ChallengerResult is the automated challenger's output for one finding.
type ChallengerResult struct {
	Challenge *string          `json:"challenge"`
	Verdict   ChallengeVerdict `json:"verdict"`
	Failed    bool             `json:"failed"`
}

// DisputeRecord is the orchestrator's view of one dispute saga.
type DisputeRecord struct {
	Finding          Finding           `json:"finding"`
	WorkflowID       string            `json:"workflow_id"`
	Status           DisputeStatus     `json:"status"`
	Phase            DisputePhase      `json:"phase"`
	Challenger       *ChallengerResult `json:"challenger,omitempty"`
	HumanChallenge   *string           `json:"human_challenge"`
	Ruling           Ruling            `json:"ruling,omitempty"`
	Reasoning        string            `json:"reasoning,omitempty"`
	Stances          map[string]Stance `json:"stances,omitempty"`
	ChallengeSources []string          `json:"challenge_sources,omitempty"`
}

// Artifact is the fetched input under review.
type Artifact struct {
	Title       string `json:"title"`
	SourceLabel string `json:"source_label"`
	Number      int    `json:"number"`
	Content     string `json:"content"`
}

// VerdictFinding is one reconciled finding in the final verdict.
type VerdictFinding struct {
	Severity         Severity `json:"severity"`
	Specialist       string   `json:"specialist"`
	Description      string   `json:"description"`
	Ruling           Ruling   `json:"ruling,omitempty"`
	ChallengeSources []string `json:"challenge_sources,omitempty"`
	Recommendation   string   `json:"recommendation"`
}

// Verdict is the synthesis output. It is never modified once set.
type Verdict struct {
	Findings []VerdictFinding `json:"findings"`
	Summary  string           `json:"summary"`
}

// PhaseTiming records when a named phase started and ended.
type PhaseTiming struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"`
}

// RuntimeMeta is observational bookkeeping about the executions behind a session.
type RuntimeMeta struct {
	WorkflowID          string                 `json:"workflow_id"`
	RunID               string                 `json:"run_id"`
	EventLogLength      int                    `json:"event_log_length"`
	StartedAt           time.Time              `json:"started_at"`
	CompletedAt         time.Time              `json:"completed_at,omitempty"`
	Checkpoints         int                    `json:"checkpoints"`
	LastCheckpointPhase Phase                  `json:"last_checkpoint_phase,omitempty"`
	PhaseTimings        map[string]PhaseTiming `json:"phase_timings"`
}

// Activity payloads

// FetchInput is the FetchArtifact activity input.
type FetchInput struct {
	Reference string `json:"reference"`
	Context   string `json:"context,omitempty"`
}

// SpecialistInput is the RunSpecialist activity input.
type SpecialistInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Context string `json:"context,omitempty"`
}

// SpecialistOutput is the RunSpecialist activity output.
type SpecialistOutput struct {
	Findings []Finding `json:"findings"`
	RawText  string    `json:"raw_text"`
}

// ChallengerInput is the RunChallenger activity input.
type ChallengerInput struct {
	FindingsBySpecialist map[string][]Finding `json:"findings_by_specialist"`
	CapPerSpecialist     int                  `json:"cap_per_specialist"`
}

// Challenge is one challenge raised by the automated challenger.
type Challenge struct {
	FindingID string           `json:"finding_id"`
	Text      string           `json:"text,omitempty"`
	Verdict   ChallengeVerdict `json:"verdict"`
}

// ChallengerOutput is the RunChallenger activity output.
type ChallengerOutput struct {
	Challenges []Challenge `json:"challenges"`
}

// ArbitrationInput is the RunArbitrator activity input.
type ArbitrationInput struct {
	Finding        Finding `json:"finding"`
	Content        string  `json:"content"`
	ChallengerText *string `json:"challenger_text,omitempty"`
	HumanText      *string `json:"human_text,omitempty"`
}

// ArbitrationOutput is the RunArbitrator activity output.
type ArbitrationOutput struct {
	Ruling    Ruling            `json:"ruling"`
	Reasoning string            `json:"reasoning"`
	Stances   map[string]Stance `json:"stances,omitempty"`
}

// DisputeOutcome summarises a finished dispute for synthesis.
type DisputeOutcome struct {
	FindingID        string   `json:"finding_id"`
	Ruling           Ruling   `json:"ruling"`
	Reasoning        string   `json:"reasoning"`
	ChallengeSources []string `json:"challenge_sources,omitempty"`
}

// SynthesisInput is the RunSynthesis activity input.
type SynthesisInput struct {
	Findings []Finding        `json:"findings"`
	Disputes []DisputeOutcome `json:"disputes"`
}

// SynthesisOutput is the RunSynthesis activity output.
type SynthesisOutput struct {
	Findings []VerdictFinding `json:"findings"`
	Summary  string           `json:"summary"`
}

// PersistInput is the PersistRecord activity input.
type PersistInput struct {
	SessionID   string                 `json:"session_id"`
	Reference   string                 `json:"reference"`
	Title       string                 `json:"title"`
	Verdict     *Verdict               `json:"verdict,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Timings     map[string]PhaseTiming `json:"timings"`
}

// DisputeInput is the DisputeWorkflow argument.
type DisputeInput struct {
	SessionID string       `json:"session_id"`
	Finding   Finding      `json:"finding"`
	Content   string       `json:"content"`
	Policy    ReviewPolicy `json:"policy"`
}

// DisputeResult is the DisputeWorkflow result.
type DisputeResult struct {
	FindingID        string            `json:"finding_id"`
	Challenger       ChallengerResult  `json:"challenger"`
	HumanChallenge   *string           `json:"human_challenge"`
	Ruling           Ruling            `json:"ruling"`
	Reasoning        string            `json:"reasoning"`
	Stances          map[string]Stance `json:"stances,omitempty"`
	ChallengeSources []string          `json:"challenge_sources,omitempty"`
}

// Signal and update payloads

// ChallengerReport is sent by a saga to its parent once the challenger settles.
type ChallengerReport struct {
	FindingID string           `json:"finding_id"`
	Result    ChallengerResult `json:"result"`
}

// HumanChallenge carries the human's text (nil when they did not respond).
type HumanChallenge struct {
	Text *string `json:"text"`
}

// SpecialistProgress is sent by a running specialist activity.
type SpecialistProgress struct {
	Specialist    string `json:"specialist"`
	Attempt       int    `json:"attempt"`
	PartialOutput string `json:"partial_output"`
}

// SubmitChallengesRequest is the submit-challenges update argument.
type SubmitChallengesRequest struct {
	Challenges map[string]string `json:"challenges"`
}

// SubmitChallengesResult acknowledges a submit-challenges update.
type SubmitChallengesResult struct {
	Accepted bool `json:"accepted"`
}
