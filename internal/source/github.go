package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// NewGitHubClient creates a GitHub client. Without a token the client is
// anonymous, which is enough for public repositories at a low rate limit.
// baseURL overrides the API root for GitHub Enterprise or tests.
func NewGitHubClient(ctx context.Context, token config.Secret, baseURL string) (*github.Client, error) {
	var client *github.Client
	if token.IsSet() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// GitHubFetcher reads pull request titles and diffs.
type GitHubFetcher struct {
	client *github.Client
	retry  RetryConfig
	logger *zap.Logger
}

// NewGitHubFetcher wraps client. A nil logger discards output.
func NewGitHubFetcher(client *github.Client, retry RetryConfig, logger *zap.Logger) *GitHubFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	retry.applyDefaults()
	return &GitHubFetcher{client: client, retry: retry, logger: logger.Named("github")}
}

// FetchPullRequest returns the pull request's title and unified diff.
func (f *GitHubFetcher) FetchPullRequest(ctx context.Context, ref Reference) (*workflows.Artifact, error) {
	log := f.logger.With(zap.String("reference", ref.Label()))

	var pr *github.PullRequest
	err := withRetry(ctx, f.retry, log, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		pr, resp, err = f.client.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("get pull request %s: %w", ref.Label(), err)
	}

	var diff string
	err = withRetry(ctx, f.retry, log, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		diff, resp, err = f.client.PullRequests.GetRaw(ctx, ref.Owner, ref.Repo, ref.Number,
			github.RawOptions{Type: github.Diff})
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("get diff for %s: %w", ref.Label(), err)
	}

	log.Debug("fetched pull request",
		zap.String("state", pr.GetState()),
		zap.Int("diff_bytes", len(diff)))

	return &workflows.Artifact{
		Title:       pr.GetTitle(),
		SourceLabel: ref.Label(),
		Number:      ref.Number,
		Content:     diff,
	}, nil
}
