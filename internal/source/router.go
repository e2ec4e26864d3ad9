package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/ignore"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

// DefaultMaxContentBytes caps artifact content handed to the specialists.
const DefaultMaxContentBytes = 512 * 1024

const truncationMarker = "\n... [diff truncated]\n"

// Router dispatches a reference to the fetcher that understands it. It
// implements workflows.Fetcher.
type Router struct {
	github   *GitHubFetcher
	git      *GitFetcher
	rules    *ignore.Matcher
	maxBytes int
}

var _ workflows.Fetcher = (*Router)(nil)

// NewRouter builds a router. Either fetcher may be nil, in which case its
// references fail permanently.
func NewRouter(gh *GitHubFetcher, local *GitFetcher, maxBytes int) *Router {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentBytes
	}
	return &Router{github: gh, git: local, maxBytes: maxBytes}
}

// WithIgnore excludes matching files from pull request diffs. Local
// repositories apply their rules in the GitFetcher.
func (r *Router) WithIgnore(rules *ignore.Matcher) *Router {
	r.rules = rules
	return r
}

// Fetch implements workflows.Fetcher. The review context is not needed to
// locate the artifact.
func (r *Router) Fetch(ctx context.Context, reference, _ string) (*workflows.Artifact, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}

	var art *workflows.Artifact
	switch ref.Kind {
	case KindGitHub:
		if r.github == nil {
			return nil, fmt.Errorf("%w: github fetching is not configured", workflows.ErrPermanent)
		}
		if art, err = r.github.FetchPullRequest(ctx, ref); err == nil {
			var skipped []string
			art.Content, skipped = r.rules.FilterDiff(art.Content)
			art.Content += excludedNote(skipped)
		}
	case KindGit:
		if r.git == nil {
			return nil, fmt.Errorf("%w: local repository fetching is not configured", workflows.ErrPermanent)
		}
		art, err = r.git.FetchCommits(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	if len(art.Content) > r.maxBytes {
		art.Content = strings.ToValidUTF8(art.Content[:r.maxBytes], "") + truncationMarker
	}
	return art, nil
}

// excludedNote tells reviewers which files were left out of the diff.
func excludedNote(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return fmt.Sprintf("\n[excluded from review: %s]\n", strings.Join(paths, ", "))
}
