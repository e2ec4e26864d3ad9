package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidAllowlist indicates an allowlist file that cannot be used.
var ErrInvalidAllowlist = errors.New("invalid allowlist")

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active (default: true)
	Enabled bool `koanf:"enabled"`

	// RedactionString replaces each match (default: "[REDACTED]")
	RedactionString string `koanf:"redaction_string"`

	// AllowList contains patterns whose matches are left alone
	AllowList []string `koanf:"allow_list"`

	// AllowListFile is an optional TOML file with an [allowlist] regexes array
	AllowListFile string `koanf:"allow_list_file"`

	// Engine is EngineRegex (default) or EngineGitleaks, which runs the
	// gitleaks rule set in addition to Rules
	Engine string `koanf:"engine"`

	Rules []Rule `koanf:"-"`
}

// Rule defines a secret detection rule.
type Rule struct {
	ID       string
	Pattern  string
	Keywords []string // at least one must appear (case-insensitive) for the rule to run
	Severity string
}

// DefaultConfig returns a configuration with the built-in rules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		RedactionString: "[REDACTED]",
		Engine:          EngineRegex,
		Rules:           DefaultRules(),
	}
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

func (c *Config) compile() ([]compiledRule, []*regexp.Regexp, error) {
	rules := make([]compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: ID is required", i)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		cr := compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		rules = append(rules, cr)
	}

	patterns := append([]string(nil), c.AllowList...)
	if c.AllowListFile != "" {
		extra, err := LoadAllowlist(c.AllowListFile)
		if err != nil {
			return nil, nil, err
		}
		patterns = append(patterns, extra...)
	}
	allow := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: pattern %d: %v", ErrInvalidAllowlist, i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}

// LoadAllowlist reads regex patterns from a TOML file of the form
//
//	[allowlist]
//	regexes = ["EXAMPLE_KEY_[0-9]+"]
//
// A missing file yields no patterns.
func LoadAllowlist(path string) ([]string, error) {
	var doc struct {
		Allowlist struct {
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAllowlist, path, err)
	}
	return doc.Allowlist.Regexes, nil
}
