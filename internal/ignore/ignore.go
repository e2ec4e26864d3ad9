// Package ignore applies gitignore-style rules to review diffs so generated
// and vendored files never reach the reviewers.
package ignore

import (
	"bufio"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the per-repository rules file. It is read from the reviewed
// commit, not the working tree.
const FileName = ".reviewignore"

const diffHeader = "diff --git "

// Matcher reports whether repository paths are excluded from review.
// A nil Matcher excludes nothing.
type Matcher struct {
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
}

// New compiles gitignore-style lines. Blank lines and comments are skipped,
// and a later "!pattern" re-includes what an earlier line excluded.
func New(lines []string) *Matcher {
	m := &Matcher{}
	m.add(lines)
	return m
}

// With returns a matcher that applies extra after m's rules.
func (m *Matcher) With(extra []string) *Matcher {
	out := &Matcher{}
	if m != nil {
		out.patterns = append(out.patterns, m.patterns...)
	}
	out.add(extra)
	return out
}

func (m *Matcher) add(lines []string) {
	for _, line := range lines {
		if p := parseLine(line); p != nil {
			m.patterns = append(m.patterns, p)
		}
	}
	m.matcher = gitignore.NewMatcher(m.patterns)
}

// Len is the number of compiled rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Match reports whether the slash-separated, repository-relative path is
// ignored.
func (m *Matcher) Match(path string) bool {
	if m.Len() == 0 || path == "" {
		return false
	}
	return m.matcher.Match(strings.Split(strings.TrimPrefix(path, "/"), "/"), false)
}

// FilterDiff drops the file sections of a unified git diff whose paths are
// ignored. Text before the first file header is kept. It returns the
// remaining diff and the skipped paths in diff order.
func (m *Matcher) FilterDiff(diff string) (string, []string) {
	if m.Len() == 0 || !strings.Contains(diff, diffHeader) {
		return diff, nil
	}

	var (
		b       strings.Builder
		skipped []string
		skip    bool
	)
	b.Grow(len(diff))
	for _, line := range strings.SplitAfter(diff, "\n") {
		if strings.HasPrefix(line, diffHeader) {
			path := headerPath(line)
			skip = m.Match(path)
			if skip {
				skipped = append(skipped, path)
			}
		}
		if !skip {
			b.WriteString(line)
		}
	}
	return b.String(), skipped
}

// Parse reads gitignore-style lines from r.
func Parse(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// parseLine compiles one rule, or returns nil for blanks and comments.
func parseLine(line string) gitignore.Pattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	return gitignore.ParsePattern(line, nil)
}

// headerPath extracts the post-image path from "diff --git a/x b/x".
func headerPath(line string) string {
	h := strings.TrimRight(strings.TrimPrefix(line, diffHeader), "\r\n")
	if i := strings.LastIndex(h, " b/"); i >= 0 {
		return h[i+len(" b/"):]
	}
	return strings.TrimPrefix(h, "a/")
}
