package github

import "errors"

// Error definitions for GitHub API operations.
var (
	// ErrPullRequestNotFound is returned when the pull request number does
	// not exist in the repository.
	ErrPullRequestNotFound = errors.New("pull request not found")

	// ErrRepositoryNotFound is returned when the repository does not exist
	// or is not visible with the current credentials.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrSourceUnavailable is returned when a pull request's head repository
	// has been deleted, so there is nothing left to fetch from.
	ErrSourceUnavailable = errors.New("pull request source repository no longer exists")

	// ErrInvalidRepoFormat is returned when a repository identifier is not
	// of the form owner/repo.
	ErrInvalidRepoFormat = errors.New("repository must be in owner/repo format")

	// ErrGHCLIUnavailable is returned when the gh binary cannot be found on
	// PATH but --gh-cli was requested.
	ErrGHCLIUnavailable = errors.New("gh CLI not found in PATH")
)
