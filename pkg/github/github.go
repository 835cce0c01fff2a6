// Package github provides GitHub API client operations.
package github

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"

	"github.com/patchwork-cli/patchwork/internal/urlutil"
)

const repoParts = 2

// Client represents a GitHub API client wrapper.
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub client. When the GITHUB_TOKEN environment
// variable is set, requests are authenticated with it; otherwise the client
// runs unauthenticated against public repositories at a lower rate limit.
func NewClient() *Client {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return &Client{client: github.NewClient(nil)}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{client: github.NewClient(tc)}
}

// ResolvePullRequest looks up a pull request by number and returns its head.
func (c *Client) ResolvePullRequest(ctx context.Context, repo string, number int) (*PullRequestHead, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s#%d", ErrPullRequestNotFound, repo, number)
		}
		return nil, fmt.Errorf("failed to get pull request %s#%d: %w", repo, number, err)
	}

	head := pr.GetHead()
	headRepo := head.GetRepo()
	if headRepo == nil {
		return nil, fmt.Errorf("%w: %s#%d", ErrSourceUnavailable, repo, number)
	}

	return &PullRequestHead{
		Number:   number,
		Owner:    headRepo.GetOwner().GetLogin(),
		Repo:     headRepo.GetName(),
		Branch:   head.GetRef(),
		CloneURL: headRepo.GetCloneURL(),
		SHA:      head.GetSHA(),
		Title:    pr.GetTitle(),
		HTMLURL:  pr.GetHTMLURL(),
	}, nil
}

// RepoCloneURL returns the HTTPS clone URL for owner/repo.
func (c *Client) RepoCloneURL(ctx context.Context, owner, repo string) (string, error) {
	r, resp, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, repo)
		}
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}
	return r.GetCloneURL(), nil
}

// SplitRepo splits an owner/repo identifier into its two parts.
func SplitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != repoParts || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoFormat, repo)
	}
	return parts[0], parts[1], nil
}

// RepoFromURL extracts "owner/repo" from a git remote URL.
// Supports both HTTPS and SSH formats:
//   - https://github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - ssh://git@github.com/owner/repo.git
func RepoFromURL(url string) (string, error) {
	ownerRepo := urlutil.OwnerRepo(url)
	if _, _, err := SplitRepo(ownerRepo); err != nil {
		return "", fmt.Errorf("cannot derive owner/repo from remote URL %q: %w", url, err)
	}
	return ownerRepo, nil
}
