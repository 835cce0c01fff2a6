package github

import "context"

// Resolver defines the interface for looking up pull requests and
// repositories on GitHub. This interface enables dependency injection and
// facilitates testing by allowing mock implementations to replace the
// actual API client. Two implementations exist: Client (REST API) and
// CLIResolver (the gh command).
type Resolver interface {
	// ResolvePullRequest looks up a pull request by number in the given
	// owner/repo and returns its head.
	// Returns ErrPullRequestNotFound if no such pull request exists.
	ResolvePullRequest(ctx context.Context, repo string, number int) (*PullRequestHead, error)

	// RepoCloneURL returns the HTTPS clone URL for owner/repo.
	// Returns ErrRepositoryNotFound if the repository does not exist.
	RepoCloneURL(ctx context.Context, owner, repo string) (string, error)
}

// Ensure both implementations satisfy the Resolver interface at compile time.
var (
	_ Resolver = (*Client)(nil)
	_ Resolver = (*CLIResolver)(nil)
)
