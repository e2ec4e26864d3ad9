package workflows

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"
)

// fakeCapabilities is a deterministic stand-in for every collaborator.
type fakeCapabilities struct {
	mu sync.Mutex

	fetchErr error
	artifact Artifact

	// specialist name -> findings (nil entry means zero findings)
	findings      map[string][]Finding
	specialistErr map[string]error
	// specialists that emit no partial output and take specialistDelay
	silent          map[string]bool
	specialistDelay time.Duration
	// specialists that never answer until their attempt is cut off
	blocking map[string]bool

	// finding ID -> challenge text; missing means the challenger agrees
	challenges    map[string]string
	challengerErr error

	arbitrate        func(ArbitrationInput) (*ArbitrationOutput, error)
	arbitrationCalls []ArbitrationInput

	synthErr        error
	synthesisCalls  []SynthesisInput
	sinkErr         error
	persisted       []PersistInput
	specialistCalls map[string]int
}

func newFakeCapabilities() *fakeCapabilities {
	return &fakeCapabilities{
		artifact: Artifact{
			Title:       "Add retry to uploader",
			SourceLabel: "acme/widgets",
			Number:      42,
			Content:     "diff --git a/upload.go b/upload.go\n+retry()\n",
		},
		findings:        map[string][]Finding{},
		specialistErr:   map[string]error{},
		silent:          map[string]bool{},
		blocking:        map[string]bool{},
		challenges:      map[string]string{},
		specialistCalls: map[string]int{},
	}
}

func (f *fakeCapabilities) Fetch(_ context.Context, reference, _ string) (*Artifact, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	art := f.artifact
	return &art, nil
}

func (f *fakeCapabilities) Analyze(ctx context.Context, in SpecialistInput, onPartial PartialFunc) (*SpecialistOutput, error) {
	f.mu.Lock()
	f.specialistCalls[in.Name]++
	err := f.specialistErr[in.Name]
	found := append([]Finding(nil), f.findings[in.Name]...)
	silent, blocking := f.silent[in.Name], f.blocking[in.Name]
	delay := f.specialistDelay
	f.mu.Unlock()

	if blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if silent && delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if onPartial != nil && !silent {
		onPartial(in.Name + " is reading the diff")
	}
	return &SpecialistOutput{Findings: found, RawText: fmt.Sprintf("%s: %d findings", in.Name, len(found))}, nil
}

func (f *fakeCapabilities) Challenge(_ context.Context, in ChallengerInput) (*ChallengerOutput, error) {
	if f.challengerErr != nil {
		return nil, f.challengerErr
	}
	out := &ChallengerOutput{}
	for _, name := range sortedKeys(in.FindingsBySpecialist) {
		for _, finding := range in.FindingsBySpecialist[name] {
			if text, ok := f.challenges[finding.ID]; ok {
				out.Challenges = append(out.Challenges, Challenge{FindingID: finding.ID, Text: text, Verdict: ChallengeDisagree})
			}
		}
	}
	return out, nil
}

func (f *fakeCapabilities) Arbitrate(_ context.Context, in ArbitrationInput) (*ArbitrationOutput, error) {
	f.mu.Lock()
	f.arbitrationCalls = append(f.arbitrationCalls, in)
	fn := f.arbitrate
	f.mu.Unlock()

	if fn != nil {
		return fn(in)
	}
	stances := map[string]Stance{}
	if in.ChallengerText != nil {
		stances[SourceChallenger] = StanceDisagrees
	}
	if in.HumanText != nil {
		stances[SourceHuman] = StanceDisagrees
	}
	return &ArbitrationOutput{Ruling: RulingUpheld, Reasoning: "The finding stands.", Stances: stances}, nil
}

func (f *fakeCapabilities) Synthesize(_ context.Context, in SynthesisInput) (*SynthesisOutput, error) {
	f.mu.Lock()
	f.synthesisCalls = append(f.synthesisCalls, in)
	f.mu.Unlock()

	if f.synthErr != nil {
		return nil, f.synthErr
	}
	rulings := map[string]DisputeOutcome{}
	for _, d := range in.Disputes {
		rulings[d.FindingID] = d
	}
	out := &SynthesisOutput{Findings: []VerdictFinding{}}
	for _, finding := range in.Findings {
		d := rulings[finding.ID]
		if d.Ruling == RulingOverturned {
			continue
		}
		out.Findings = append(out.Findings, VerdictFinding{
			Severity:         finding.Severity,
			Specialist:       finding.Specialist,
			Description:      finding.Description,
			Ruling:           d.Ruling,
			ChallengeSources: d.ChallengeSources,
			Recommendation:   finding.Recommendation,
		})
	}
	out.Summary = fmt.Sprintf("%d of %d findings kept", len(out.Findings), len(in.Findings))
	return out, nil
}

func (f *fakeCapabilities) Append(_ context.Context, rec PersistInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sinkErr != nil {
		return f.sinkErr
	}
	f.persisted = append(f.persisted, rec)
	return nil
}

func (f *fakeCapabilities) activities() *Activities {
	return &Activities{
		Fetcher:     f,
		Specialist:  f,
		Challenger:  f,
		Arbitrator:  f,
		Synthesizer: f,
		Sink:        f,
	}
}

func newReviewEnv(t *testing.T, fake *fakeCapabilities) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ReviewWorkflow)
	env.RegisterWorkflow(DisputeWorkflow)
	env.RegisterActivity(fake.activities())
	// Sagas report interim challenger results to the parent; the report is
	// advisory so accept it wherever the test environment routes it.
	env.OnSignalExternalWorkflow(mock.Anything, mock.Anything, mock.Anything, SignalChallengerResult, mock.Anything).Return(nil)
	return env
}

func testRequest() ReviewInput {
	policy := DefaultReviewPolicy()
	policy.Persist.InitialBackoff = 10 * time.Millisecond
	return ReviewInput{Request: ReviewRequest{
		SessionID: "review-test",
		Reference: "acme/widgets#42",
		Context:   "focus on the retry path",
		Policy:    policy,
	}}
}

func finding(severity Severity, desc string) Finding {
	return Finding{Severity: severity, Description: desc, Recommendation: "fix " + desc}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func strPtr(s string) *string { return &s }
