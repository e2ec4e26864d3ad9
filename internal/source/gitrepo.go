package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/ignore"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// GitFetcher diffs commits in local repositories.
type GitFetcher struct {
	roots  []string
	rules  *ignore.Matcher
	logger *zap.Logger
}

// NewGitFetcher restricts fetching to repositories under roots. With no roots
// any path the worker can read is allowed. rules exclude files from every
// diff; a repository's own ignore file is applied after them.
func NewGitFetcher(roots []string, rules *ignore.Matcher, logger *zap.Logger) *GitFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			clean = append(clean, abs)
		}
	}
	return &GitFetcher{roots: clean, rules: rules, logger: logger.Named("git")}
}

// FetchCommits returns the patch between Base (or Head's first parent) and
// Head. A root commit is diffed against the empty tree.
func (f *GitFetcher) FetchCommits(ctx context.Context, ref Reference) (*workflows.Artifact, error) {
	if err := f.allowed(ref.Path); err != nil {
		return nil, err
	}

	repo, err := git.PlainOpen(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open repository %s: %v", workflows.ErrPermanent, ref.Path, err)
	}

	head, err := resolveCommit(repo, ref.Head)
	if err != nil {
		return nil, err
	}

	var base *object.Commit
	switch {
	case ref.Base != "":
		if base, err = resolveCommit(repo, ref.Base); err != nil {
			return nil, err
		}
	case head.NumParents() > 0:
		if base, err = head.Parent(0); err != nil {
			return nil, fmt.Errorf("load parent of %s: %w", head.Hash, err)
		}
	}

	rules, err := f.rulesFor(head)
	if err != nil {
		return nil, err
	}
	content, skipped, err := patchBetween(ctx, base, head, rules)
	if err != nil {
		return nil, err
	}
	content += excludedNote(skipped)

	f.logger.Debug("diffed commits",
		zap.String("reference", ref.Label()),
		zap.String("head", head.Hash.String()),
		zap.Int("diff_bytes", len(content)),
		zap.Int("excluded_files", len(skipped)))

	return &workflows.Artifact{
		Title:       firstLine(head.Message),
		SourceLabel: ref.Label(),
		Content:     content,
	}, nil
}

func (f *GitFetcher) allowed(path string) error {
	if len(f.roots) == 0 {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", workflows.ErrPermanent, path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	for _, root := range f.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is outside the allowed repository roots", workflows.ErrPermanent, path)
}

func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", workflows.ErrPermanent, rev, err)
	}
	c, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a commit: %v", workflows.ErrPermanent, rev, err)
	}
	return c, nil
}

// rulesFor layers the ignore file committed at head over the fetcher's
// rules.
func (f *GitFetcher) rulesFor(head *object.Commit) (*ignore.Matcher, error) {
	file, err := head.File(ignore.FileName)
	if errors.Is(err, object.ErrFileNotFound) {
		return f.rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", ignore.FileName, head.Hash, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", ignore.FileName, head.Hash, err)
	}
	lines, err := ignore.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", workflows.ErrPermanent, ignore.FileName, err)
	}
	return f.rules.With(lines), nil
}

// patchBetween diffs base against head, dropping ignored paths. A nil base
// is the empty tree.
func patchBetween(ctx context.Context, base, head *object.Commit, rules *ignore.Matcher) (string, []string, error) {
	headTree, err := head.Tree()
	if err != nil {
		return "", nil, fmt.Errorf("load tree of %s: %w", head.Hash, err)
	}
	var baseTree *object.Tree
	if base != nil {
		if baseTree, err = base.Tree(); err != nil {
			return "", nil, fmt.Errorf("load tree of %s: %w", base.Hash, err)
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, baseTree, headTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return "", nil, fmt.Errorf("diff %s: %w", head.Hash, err)
	}

	kept := make(object.Changes, 0, len(changes))
	var skipped []string
	for _, ch := range changes {
		path := ch.To.Name
		if path == "" {
			path = ch.From.Name
		}
		if rules.Match(path) {
			skipped = append(skipped, path)
			continue
		}
		kept = append(kept, ch)
	}

	patch, err := kept.PatchContext(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("patch %s: %w", head.Hash, err)
	}
	return patch.String(), skipped, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
