package secrets

import (
	"regexp"
	"strings"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Engine names accepted by Config.Engine.
const (
	EngineRegex    = "regex"
	EngineGitleaks = "gitleaks"
)

// gitleaks rules carry no severity of their own.
const gitleaksSeverity = "high"

// gitleaksEngine runs the gitleaks default rule set. The parsed config is
// shared; detectors are not, since each one accumulates its findings.
type gitleaksEngine struct {
	cfg gitleaksConfig.Config
}

func newGitleaksEngine(allow []*regexp.Regexp) (*gitleaksEngine, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	cfg := detector.Config
	if len(allow) > 0 {
		list := &gitleaksConfig.Allowlist{Description: "reviewd allowlist"}
		for _, re := range allow {
			list.Regexes = append(list.Regexes, (*gitleaksRegexp.Regexp)(re))
		}
		cfg.Allowlists = append(cfg.Allowlists, list)
	}
	return &gitleaksEngine{cfg: cfg}, nil
}

// detect returns a span for every occurrence of each reported secret.
// Line numbers are recomputed from the content so both engines agree.
func (g *gitleaksEngine) detect(content string) ([]span, []Finding) {
	var (
		spans    []span
		findings []Finding
	)
	for _, f := range detect.NewDetector(g.cfg).DetectString(content) {
		if f.Secret == "" {
			continue
		}
		first := -1
		for off := 0; ; {
			i := strings.Index(content[off:], f.Secret)
			if i < 0 {
				break
			}
			start := off + i
			if first < 0 {
				first = start
			}
			spans = append(spans, span{start, start + len(f.Secret)})
			off = start + len(f.Secret)
		}
		if first < 0 {
			continue
		}
		findings = append(findings, Finding{
			RuleID:   f.RuleID,
			Severity: gitleaksSeverity,
			Line:     strings.Count(content[:first], "\n") + 1,
		})
	}
	return spans, findings
}
