// Package source fetches the artifact a review runs over.
//
// Two reference forms are understood:
//
//	owner/repo#123                           GitHub pull request
//	https://github.com/owner/repo/pull/123   same, as a URL
//	git:/path/to/repo@<rev>                  one local commit against its parent
//	git:/path/to/repo@<base>..<head>         a local commit range
//
// Anything else is rejected as a permanent failure so the session completes
// with a fetch error instead of retrying.
package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

// Kind identifies which fetcher serves a reference.
type Kind int

const (
	KindGitHub Kind = iota + 1
	KindGit
)

func (k Kind) String() string {
	switch k {
	case KindGitHub:
		return "github"
	case KindGit:
		return "git"
	default:
		return "unknown"
	}
}

// Reference is a parsed review reference.
type Reference struct {
	Kind Kind

	Owner  string
	Repo   string
	Number int

	Path string
	Base string // empty means the parent of Head
	Head string
}

// Label renders the reference the way it is shown to reviewers.
func (r Reference) Label() string {
	switch r.Kind {
	case KindGitHub:
		return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
	case KindGit:
		if r.Base != "" {
			return fmt.Sprintf("git:%s@%s..%s", r.Path, r.Base, r.Head)
		}
		return fmt.Sprintf("git:%s@%s", r.Path, r.Head)
	default:
		return ""
	}
}

var (
	shortPRPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)#([0-9]+)$`)
	urlPRPattern   = regexp.MustCompile(`^https?://[^/\s]+/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)/pull/([0-9]+)(?:/[a-z]*)?/?$`)
	revPattern     = regexp.MustCompile(`^[A-Za-z0-9_./~^-]+$`)
)

// ParseReference recognises the forms listed in the package documentation.
// Errors wrap workflows.ErrPermanent.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)

	if m := shortPRPattern.FindStringSubmatch(ref); m != nil {
		return githubRef(m[1], m[2], m[3])
	}
	if m := urlPRPattern.FindStringSubmatch(ref); m != nil {
		return githubRef(m[1], m[2], m[3])
	}
	if rest, ok := strings.CutPrefix(ref, "git:"); ok {
		return gitRef(rest)
	}
	return Reference{}, fmt.Errorf("%w: unrecognised reference %q", workflows.ErrPermanent, ref)
}

func githubRef(owner, repo, num string) (Reference, error) {
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return Reference{}, fmt.Errorf("%w: invalid pull request number %q", workflows.ErrPermanent, num)
	}
	return Reference{Kind: KindGitHub, Owner: owner, Repo: repo, Number: n}, nil
}

func gitRef(rest string) (Reference, error) {
	at := strings.LastIndex(rest, "@")
	if at <= 0 || at == len(rest)-1 {
		return Reference{}, fmt.Errorf("%w: git reference must be git:<path>@<rev>", workflows.ErrPermanent)
	}
	path, rev := rest[:at], rest[at+1:]

	r := Reference{Kind: KindGit, Path: path, Head: rev}
	if base, head, ok := strings.Cut(rev, ".."); ok {
		r.Base, r.Head = base, head
		if base == "" || head == "" {
			return Reference{}, fmt.Errorf("%w: incomplete range %q", workflows.ErrPermanent, rev)
		}
	}
	for _, v := range []string{r.Base, r.Head} {
		if v != "" && !revPattern.MatchString(v) {
			return Reference{}, fmt.Errorf("%w: invalid revision %q", workflows.ErrPermanent, v)
		}
	}
	return r, nil
}
