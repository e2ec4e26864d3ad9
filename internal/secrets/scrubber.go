package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	Scrub(content string) *Result
}

type scrubber struct {
	redaction string
	rules     []compiledRule
	allow     []*regexp.Regexp
	gitleaks  *gitleaksEngine
}

type span struct{ start, end int }

// New creates a Scrubber. A nil config uses DefaultConfig; a disabled config
// yields a NoopScrubber.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}
	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	s := &scrubber{redaction: cfg.RedactionString, rules: rules, allow: allow}
	if s.redaction == "" {
		s.redaction = "[REDACTED]"
	}
	switch cfg.Engine {
	case "", EngineRegex:
	case EngineGitleaks:
		if s.gitleaks, err = newGitleaksEngine(allow); err != nil {
			return nil, fmt.Errorf("gitleaks rules: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown secrets engine %q", cfg.Engine)
	}
	return s, nil
}

// Scrub redacts secrets from the content. Overlapping matches collapse into
// one redaction.
func (s *scrubber) Scrub(content string) *Result {
	start := time.Now()
	result := &Result{Scrubbed: content, ByRule: map[string]int{}}

	var spans []span
	for _, rule := range s.rules {
		if !rule.gated(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				RuleID:   rule.ID,
				Severity: rule.Severity,
				Line:     strings.Count(content[:m[0]], "\n") + 1,
			})
			result.ByRule[rule.ID]++
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if s.gitleaks != nil {
		extra, findings := s.gitleaks.detect(content)
		spans = append(spans, extra...)
		for _, f := range findings {
			result.Findings = append(result.Findings, f)
			result.ByRule[f.RuleID]++
		}
	}
	result.TotalFindings = len(result.Findings)

	if len(spans) > 0 {
		var b strings.Builder
		last := 0
		for _, sp := range merge(spans) {
			b.WriteString(content[last:sp.start])
			b.WriteString(s.redaction)
			last = sp.end
		}
		b.WriteString(content[last:])
		result.Scrubbed = b.String()
	}
	result.Duration = time.Since(start)
	return result
}

func (r compiledRule) gated(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) allowed(match string) bool {
	for _, a := range s.allow {
		if a.MatchString(match) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or touching ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

// Scrub implements Scrubber.
func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
