package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/ignore"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with three commits and returns its path and
// the commit hashes in order.
func initRepo(t *testing.T) (string, []plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	steps := []struct {
		content string
		message string
	}{
		{"package uploader\n", "Initial uploader"},
		{"package uploader\n\nfunc Upload() {}\n", "Add Upload\n\nLonger body."},
		{"package uploader\n\nfunc Upload() { retry() }\n", "Retry uploads"},
	}
	var hashes []plumbing.Hash
	for i, s := range steps {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "uploader.go"), []byte(s.content), 0o644))
		_, err := wt.Add("uploader.go")
		require.NoError(t, err)
		h, err := wt.Commit(s.message, &git.CommitOptions{Author: &object.Signature{
			Name:  "Reviewer",
			Email: "reviewer@example.com",
			When:  time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}})
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	return dir, hashes
}

func TestGitFetcher_HeadAgainstParent(t *testing.T) {
	dir, _ := initRepo(t)
	f := NewGitFetcher(nil, nil, nil)

	art, err := f.FetchCommits(context.Background(), Reference{Kind: KindGit, Path: dir, Head: "HEAD"})
	require.NoError(t, err)
	assert.Equal(t, "Retry uploads", art.Title)
	assert.Equal(t, "git:"+dir+"@HEAD", art.SourceLabel)
	assert.Contains(t, art.Content, "+func Upload() { retry() }")
	assert.Contains(t, art.Content, "-func Upload() {}")
}

func TestGitFetcher_Range(t *testing.T) {
	dir, hashes := initRepo(t)
	f := NewGitFetcher(nil, nil, nil)

	art, err := f.FetchCommits(context.Background(), Reference{
		Kind: KindGit, Path: dir, Base: hashes[0].String(), Head: hashes[2].String(),
	})
	require.NoError(t, err)
	assert.Contains(t, art.Content, "+func Upload() { retry() }")
	assert.NotContains(t, art.Content, "-func Upload() {}")
}

func TestGitFetcher_RootCommit(t *testing.T) {
	dir, hashes := initRepo(t)
	f := NewGitFetcher(nil, nil, nil)

	art, err := f.FetchCommits(context.Background(), Reference{Kind: KindGit, Path: dir, Head: hashes[0].String()})
	require.NoError(t, err)
	assert.Equal(t, "Initial uploader", art.Title)
	assert.Contains(t, art.Content, "+package uploader")
}

func TestGitFetcher_Errors(t *testing.T) {
	dir, _ := initRepo(t)

	t.Run("unknown revision", func(t *testing.T) {
		_, err := NewGitFetcher(nil, nil, nil).FetchCommits(context.Background(), Reference{Kind: KindGit, Path: dir, Head: "nope"})
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
	})

	t.Run("not a repository", func(t *testing.T) {
		_, err := NewGitFetcher(nil, nil, nil).FetchCommits(context.Background(), Reference{Kind: KindGit, Path: t.TempDir(), Head: "HEAD"})
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
	})

	t.Run("outside allowed roots", func(t *testing.T) {
		f := NewGitFetcher([]string{t.TempDir()}, nil, nil)
		_, err := f.FetchCommits(context.Background(), Reference{Kind: KindGit, Path: dir, Head: "HEAD"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
		assert.Contains(t, err.Error(), "outside the allowed")
	})

	t.Run("inside allowed roots", func(t *testing.T) {
		f := NewGitFetcher([]string{filepath.Dir(dir)}, nil, nil)
		_, err := f.FetchCommits(context.Background(), Reference{Kind: KindGit, Path: dir, Head: "HEAD"})
		assert.NoError(t, err)
	})
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Add Upload", firstLine("Add Upload\n\nLonger body."))
	assert.Equal(t, "single", firstLine("  single \n"))
	assert.Equal(t, "", firstLine(""))
}

func TestRouter(t *testing.T) {
	dir, _ := initRepo(t)
	ctx := context.Background()

	t.Run("routes git references", func(t *testing.T) {
		r := NewRouter(nil, NewGitFetcher(nil, nil, nil), 0)
		art, err := r.Fetch(ctx, "git:"+dir+"@HEAD", "")
		require.NoError(t, err)
		assert.Equal(t, "Retry uploads", art.Title)
	})

	t.Run("routes github references", func(t *testing.T) {
		_, gh := newGitHubServer(t, nil)
		r := NewRouter(gh, nil, 0)
		art, err := r.Fetch(ctx, "https://github.com/acme/widgets/pull/42", "focus on retries")
		require.NoError(t, err)
		assert.Equal(t, 42, art.Number)
	})

	t.Run("unconfigured fetcher is permanent", func(t *testing.T) {
		r := NewRouter(nil, nil, 0)
		_, err := r.Fetch(ctx, "acme/widgets#42", "")
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
		_, err = r.Fetch(ctx, "git:"+dir+"@HEAD", "")
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
	})

	t.Run("unknown reference is permanent", func(t *testing.T) {
		_, err := NewRouter(nil, nil, 0).Fetch(ctx, "ftp://nowhere", "")
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
	})

	t.Run("large content is truncated", func(t *testing.T) {
		r := NewRouter(nil, NewGitFetcher(nil, nil, nil), 64)
		art, err := r.Fetch(ctx, "git:"+dir+"@HEAD", "")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(art.Content, truncationMarker))
		assert.LessOrEqual(t, len(art.Content), 64+len(truncationMarker))
	})
}

func commitFiles(t *testing.T, dir string, files map[string]string, message string) {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit(message, &git.CommitOptions{Author: &object.Signature{
		Name: "Reviewer", Email: "reviewer@example.com", When: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
}

func TestGitFetcher_IgnoreRules(t *testing.T) {
	dir, _ := initRepo(t)
	commitFiles(t, dir, map[string]string{
		"go.sum":            "example.com/dep v1.0.0 h1:abc=\n",
		"api/service.pb.go": "package api\n",
		"main.go":           "package main\n",
		ignore.FileName:     "*.pb.go\n",
	}, "Add service")

	f := NewGitFetcher(nil, ignore.New([]string{"go.sum"}), nil)
	art, err := f.FetchCommits(context.Background(), Reference{Kind: KindGit, Path: dir, Head: "HEAD"})
	require.NoError(t, err)

	assert.Contains(t, art.Content, "+package main")
	assert.NotContains(t, art.Content, "h1:abc=")
	assert.NotContains(t, art.Content, "+package api")
	assert.Contains(t, art.Content, "[excluded from review: ")
	assert.Contains(t, art.Content, "go.sum")
	assert.Contains(t, art.Content, "api/service.pb.go")
}

func TestRouter_IgnoresPullRequestFiles(t *testing.T) {
	_, gh := newGitHubServer(t, nil)
	r := NewRouter(gh, nil, 0).WithIgnore(ignore.New([]string{"uploader.go"}))

	art, err := r.Fetch(context.Background(), "acme/widgets#42", "")
	require.NoError(t, err)
	assert.NotContains(t, art.Content, "+// retry")
	assert.Contains(t, art.Content, "[excluded from review: uploader.go]")
}
