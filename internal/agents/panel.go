package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"go.uber.org/zap"
)

// Panel implements every model-backed review capability over one Completer.
type Panel struct {
	completer Completer
	personas  *Personas
	maxTokens int
	logger    *zap.Logger
}

var (
	_ workflows.Specialist  = (*Panel)(nil)
	_ workflows.Challenger  = (*Panel)(nil)
	_ workflows.Arbitrator  = (*Panel)(nil)
	_ workflows.Synthesizer = (*Panel)(nil)
)

// NewPanel creates a panel. A nil personas uses the embedded defaults.
func NewPanel(c Completer, personas *Personas, maxTokens int, logger *zap.Logger) *Panel {
	if personas == nil {
		personas = DefaultPersonas()
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{completer: c, personas: personas, maxTokens: maxTokens, logger: logger.Named("agents")}
}

type findingsResponse struct {
	Findings []struct {
		Severity       string `json:"severity"`
		Description    string `json:"description"`
		Location       string `json:"location"`
		Recommendation string `json:"recommendation"`
	} `json:"findings"`
}

// Analyze implements workflows.Specialist. Finding IDs are assigned by the
// caller.
func (p *Panel) Analyze(ctx context.Context, in workflows.SpecialistInput, onPartial workflows.PartialFunc) (*workflows.SpecialistOutput, error) {
	text, err := p.completer.Complete(ctx, Request{
		System:    specialistSystem(p.personas.Specialist(in.Name)),
		Prompt:    specialistPrompt(in),
		MaxTokens: p.maxTokens,
	}, onPartial)
	if err != nil {
		return nil, err
	}

	var resp findingsResponse
	if err := decodeResponse(text, &resp); err != nil {
		return nil, fmt.Errorf("specialist %s: %w", in.Name, err)
	}

	out := &workflows.SpecialistOutput{RawText: text}
	for _, f := range resp.Findings {
		if strings.TrimSpace(f.Description) == "" {
			continue
		}
		out.Findings = append(out.Findings, workflows.Finding{
			Specialist:     in.Name,
			Severity:       workflows.Severity(normalize(f.Severity)),
			Description:    strings.TrimSpace(f.Description),
			Location:       strings.TrimSpace(f.Location),
			Recommendation: strings.TrimSpace(f.Recommendation),
		})
	}
	p.logger.Debug("specialist analysis parsed",
		zap.String("specialist", in.Name),
		zap.Int("findings", len(out.Findings)))
	return out, nil
}

type challengesResponse struct {
	Challenges []struct {
		FindingID string `json:"finding_id"`
		Verdict   string `json:"verdict"`
		Challenge string `json:"challenge"`
	} `json:"challenges"`
}

// Challenge implements workflows.Challenger. At most CapPerSpecialist
// findings per specialist are shown to the model; challenges naming a finding
// that was not shown are dropped.
func (p *Panel) Challenge(ctx context.Context, in workflows.ChallengerInput) (*workflows.ChallengerOutput, error) {
	shown := capFindings(in.FindingsBySpecialist, in.CapPerSpecialist)
	if len(shown) == 0 {
		return &workflows.ChallengerOutput{}, nil
	}
	known := make(map[string]bool, len(shown))
	for _, f := range shown {
		known[f.ID] = true
	}

	text, err := p.completer.Complete(ctx, Request{
		System:    p.personas.Challenger.System,
		Prompt:    challengerPrompt(shown),
		MaxTokens: p.maxTokens,
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp challengesResponse
	if err := decodeResponse(text, &resp); err != nil {
		return nil, fmt.Errorf("challenger: %w", err)
	}

	out := &workflows.ChallengerOutput{}
	for _, c := range resp.Challenges {
		id := strings.TrimSpace(c.FindingID)
		if !known[id] {
			p.logger.Debug("dropping challenge for unknown finding", zap.String("finding_id", id))
			continue
		}
		challenge := strings.TrimSpace(c.Challenge)
		out.Challenges = append(out.Challenges, workflows.Challenge{
			FindingID: id,
			Text:      challenge,
			Verdict:   challengeVerdict(c.Verdict, challenge),
		})
	}
	return out, nil
}

// challengeVerdict maps a model verdict onto the known set. An unrecognized
// verdict with text attached is treated as a partial disagreement.
func challengeVerdict(v, text string) workflows.ChallengeVerdict {
	switch cv := workflows.ChallengeVerdict(normalize(v)); cv {
	case workflows.ChallengeAgree, workflows.ChallengeDisagree, workflows.ChallengePartial:
		return cv
	}
	if text != "" {
		return workflows.ChallengePartial
	}
	return workflows.ChallengeAgree
}

func capFindings(bySpecialist map[string][]workflows.Finding, perSpecialist int) []workflows.Finding {
	names := make([]string, 0, len(bySpecialist))
	for name := range bySpecialist {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []workflows.Finding
	for _, name := range names {
		fs := bySpecialist[name]
		if perSpecialist > 0 && len(fs) > perSpecialist {
			fs = fs[:perSpecialist]
		}
		out = append(out, fs...)
	}
	return out
}

type rulingResponse struct {
	Ruling    string            `json:"ruling"`
	Reasoning string            `json:"reasoning"`
	Stances   map[string]string `json:"stances"`
}

// Arbitrate implements workflows.Arbitrator. Stances are kept only for the
// challenge sources that were actually present.
func (p *Panel) Arbitrate(ctx context.Context, in workflows.ArbitrationInput) (*workflows.ArbitrationOutput, error) {
	text, err := p.completer.Complete(ctx, Request{
		System:    p.personas.Arbitrator.System,
		Prompt:    arbitratorPrompt(in),
		MaxTokens: p.maxTokens,
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp rulingResponse
	if err := decodeResponse(text, &resp); err != nil {
		return nil, fmt.Errorf("arbitrator: %w", err)
	}

	out := &workflows.ArbitrationOutput{
		Ruling:    workflows.Ruling(normalize(resp.Ruling)),
		Reasoning: strings.TrimSpace(resp.Reasoning),
	}
	present := map[string]bool{
		workflows.SourceChallenger: in.ChallengerText != nil,
		workflows.SourceHuman:      in.HumanText != nil,
	}
	for source, stance := range resp.Stances {
		source = normalize(source)
		s := workflows.Stance(normalize(stance))
		if !present[source] {
			continue
		}
		switch s {
		case workflows.StanceAgrees, workflows.StanceDisagrees, workflows.StanceMixed:
			if out.Stances == nil {
				out.Stances = make(map[string]workflows.Stance)
			}
			out.Stances[source] = s
		}
	}
	return out, nil
}

type verdictResponse struct {
	Summary  string `json:"summary"`
	Findings []struct {
		FindingID      string `json:"finding_id"`
		Severity       string `json:"severity"`
		Description    string `json:"description"`
		Recommendation string `json:"recommendation"`
	} `json:"findings"`
}

// Synthesize implements workflows.Synthesizer. The model chooses which
// findings survive and may reword them; specialist attribution, rulings and
// challenge sources always come from the input.
func (p *Panel) Synthesize(ctx context.Context, in workflows.SynthesisInput) (*workflows.SynthesisOutput, error) {
	text, err := p.completer.Complete(ctx, Request{
		System:    p.personas.Synthesizer.System,
		Prompt:    synthesizerPrompt(in),
		MaxTokens: p.maxTokens,
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp verdictResponse
	if err := decodeResponse(text, &resp); err != nil {
		return nil, fmt.Errorf("synthesizer: %w", err)
	}

	byID := make(map[string]workflows.Finding, len(in.Findings))
	for _, f := range in.Findings {
		byID[f.ID] = f
	}
	disputes := make(map[string]workflows.DisputeOutcome, len(in.Disputes))
	for _, d := range in.Disputes {
		disputes[d.FindingID] = d
	}

	out := &workflows.SynthesisOutput{Summary: strings.TrimSpace(resp.Summary)}
	seen := make(map[string]bool)
	for _, vf := range resp.Findings {
		id := strings.TrimSpace(vf.FindingID)
		f, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		sev := workflows.Severity(normalize(vf.Severity))
		if sev.Rank() > workflows.SeverityMinor.Rank() {
			sev = f.Severity
		}
		out.Findings = append(out.Findings, workflows.VerdictFinding{
			Severity:         sev,
			Specialist:       f.Specialist,
			Description:      orDefault(vf.Description, f.Description),
			Ruling:           disputes[id].Ruling,
			ChallengeSources: disputes[id].ChallengeSources,
			Recommendation:   orDefault(vf.Recommendation, f.Recommendation),
		})
	}
	sort.SliceStable(out.Findings, func(i, j int) bool {
		return out.Findings[i].Severity.Rank() < out.Findings[j].Severity.Rank()
	})
	return out, nil
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
