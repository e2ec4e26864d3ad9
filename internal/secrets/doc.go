// Package secrets redacts credentials from fetched artifacts before they are
// handed to analysis models or stored in workflow history.
//
// Rules are regular expressions with optional keyword gates. An allowlist,
// configured inline or loaded from a TOML file, exempts known-safe matches such
// as test fixtures.
//
// With the gitleaks engine the gitleaks default rule set runs alongside the
// built-in rules and shares the allowlist.
package secrets
