package workflows

import (
	"context"
	"errors"
)

// ErrPermanent is wrapped by collaborators whose failure retrying cannot fix,
// for example a reference that does not exist.
var ErrPermanent = errors.New("permanent failure")

// Fetcher turns a user-supplied reference into the artifact under review.
type Fetcher interface {
	Fetch(ctx context.Context, reference, context string) (*Artifact, error)
}

// PartialFunc receives the text a streaming call has produced so far.
type PartialFunc func(text string)

// Specialist runs one named analysis over the artifact content.
type Specialist interface {
	Analyze(ctx context.Context, in SpecialistInput, onPartial PartialFunc) (*SpecialistOutput, error)
}

// Challenger disputes findings independently of human input.
type Challenger interface {
	Challenge(ctx context.Context, in ChallengerInput) (*ChallengerOutput, error)
}

// Arbitrator rules on a disputed finding.
type Arbitrator interface {
	Arbitrate(ctx context.Context, in ArbitrationInput) (*ArbitrationOutput, error)
}

// Synthesizer reconciles findings and dispute outcomes into a verdict.
type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisOutput, error)
}

// RecordSink durably appends a completed session.
type RecordSink interface {
	Append(ctx context.Context, rec PersistInput) error
}

// ProgressReporter forwards a running specialist's partial output to the
// session that owns it.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, workflowID string, p SpecialistProgress) error
}
