package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// CLIResolver resolves pull requests through the gh command instead of the
// REST API directly. gh brings its own stored credentials, which makes it
// useful where no GITHUB_TOKEN is exported.
type CLIResolver struct {
	// binary is the gh executable path. Set by NewCLIResolver.
	binary string
}

// NewCLIResolver creates a resolver backed by the gh CLI.
// Returns ErrGHCLIUnavailable when gh is not installed.
func NewCLIResolver() (*CLIResolver, error) {
	path, err := exec.LookPath("gh")
	if err != nil {
		return nil, ErrGHCLIUnavailable
	}
	return &CLIResolver{binary: path}, nil
}

// cliPullRequest mirrors the fields of the REST pull request payload that
// the resolver needs.
type cliPullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		Ref  string `json:"ref"`
		SHA  string `json:"sha"`
		Repo *struct {
			Name     string `json:"name"`
			CloneURL string `json:"clone_url"`
			Owner    struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repo"`
	} `json:"head"`
}

// cliRepository mirrors the fields of the REST repository payload that the
// resolver needs.
type cliRepository struct {
	CloneURL string `json:"clone_url"`
}

// ResolvePullRequest looks up a pull request by number via `gh api`.
func (c *CLIResolver) ResolvePullRequest(ctx context.Context, repo string, number int) (*PullRequestHead, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	data, err := c.api(ctx, fmt.Sprintf("repos/%s/%s/pulls/%d", owner, name, number))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s#%d", ErrPullRequestNotFound, repo, number)
		}
		return nil, fmt.Errorf("failed to get pull request %s#%d: %w", repo, number, err)
	}

	return decodePullRequest(data, repo, number)
}

// RepoCloneURL returns the HTTPS clone URL for owner/repo via `gh api`.
func (c *CLIResolver) RepoCloneURL(ctx context.Context, owner, repo string) (string, error) {
	data, err := c.api(ctx, fmt.Sprintf("repos/%s/%s", owner, repo))
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, repo)
		}
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}

	var r cliRepository
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("failed to decode gh output: %w", err)
	}
	return r.CloneURL, nil
}

// api runs `gh api <endpoint>` and returns its stdout.
func (c *CLIResolver) api(ctx context.Context, endpoint string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, "api", endpoint)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gh api %s timed out: %w", endpoint, ctx.Err())
		}
		return nil, fmt.Errorf("gh api %s failed: %w: %s",
			endpoint, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// isNotFound reports whether a gh failure was an HTTP 404.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "HTTP 404") || strings.Contains(msg, "Not Found")
}

// decodePullRequest turns a REST pull request payload into a PullRequestHead.
func decodePullRequest(data []byte, repo string, number int) (*PullRequestHead, error) {
	var pr cliPullRequest
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode gh output: %w", err)
	}
	if pr.Head.Repo == nil {
		return nil, fmt.Errorf("%w: %s#%d", ErrSourceUnavailable, repo, number)
	}

	return &PullRequestHead{
		Number:   number,
		Owner:    pr.Head.Repo.Owner.Login,
		Repo:     pr.Head.Repo.Name,
		Branch:   pr.Head.Ref,
		CloneURL: pr.Head.Repo.CloneURL,
		SHA:      pr.Head.SHA,
		Title:    pr.Title,
		HTMLURL:  pr.HTMLURL,
	}, nil
}
