package secrets

// DefaultRules returns the built-in detection rules. Patterns with
// self-identifying prefixes run unconditionally; generic ones are gated on
// keywords to keep false positives in diffs down.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "aws-access-key-id", Pattern: `\b(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`, Severity: "high"},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`, Severity: "high"},
		{ID: "github-token", Pattern: `\bgh[pousr]_[A-Za-z0-9]{36,}\b`, Severity: "high"},
		{ID: "github-fine-grained", Pattern: `\bgithub_pat_[A-Za-z0-9_]{22,}\b`, Severity: "high"},
		{ID: "anthropic-api-key", Pattern: `\bsk-ant-[A-Za-z0-9_\-]{20,}`, Severity: "high"},
		{ID: "openai-api-key", Pattern: `\bsk-(?:proj-)?[A-Za-z0-9]{20,}`, Severity: "high"},
		{ID: "slack-token", Pattern: `\bxox[baprs]-[A-Za-z0-9-]{10,}`, Severity: "high"},
		{ID: "google-api-key", Pattern: `\bAIza[0-9A-Za-z_\-]{35}\b`, Severity: "medium"},
		{ID: "jwt", Pattern: `\beyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`, Severity: "medium"},
		{
			ID:       "database-url",
			Pattern:  `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis)://[^\s:/]+:[^\s@/]+@`,
			Keywords: []string{"://"},
			Severity: "high",
		},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"api"},
			Severity: "medium",
		},
		{
			ID:       "generic-secret",
			Pattern:  `(?i)(?:secret|password|passwd)\s*[:=]\s*['"][^\s'"]{8,}['"]`,
			Keywords: []string{"secret", "passw"},
			Severity: "medium",
		},
	}
}
