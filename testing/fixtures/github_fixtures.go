// Package fixtures provides common test data structures for testing.
package fixtures

import (
	ghpkg "github.com/patchwork-cli/patchwork/pkg/github"
)

// Test constants for GitHub fixtures.
const (
	// TestBaseRepo is the owner/repo hosting the pull requests.
	TestBaseRepo = "helix-editor/helix"
	// TestPRNumber is the default pull request number.
	TestPRNumber = 4236
	// TestHeadSHA is a full SHA-1 used as a pull request head.
	TestHeadSHA = "1bd7a390aabbccdd1bd7a390aabbccdd1bd7a390"
)

// PullRequestHead returns a resolved pull request head from a fork.
func PullRequestHead() *ghpkg.PullRequestHead {
	return &ghpkg.PullRequestHead{
		Number:   TestPRNumber,
		Owner:    "contributor",
		Repo:     "helix",
		Branch:   "feat/comment-textobject",
		CloneURL: "https://github.com/contributor/helix.git",
		SHA:      TestHeadSHA,
		Title:    "Add textobject for comments",
		HTMLURL:  "https://github.com/helix-editor/helix/pull/4236",
	}
}

// SameRepoPullRequestHead returns a head whose branch lives in the base
// repository itself rather than a fork.
func SameRepoPullRequestHead(number int, branch, cloneURL, sha string) *ghpkg.PullRequestHead {
	return &ghpkg.PullRequestHead{
		Number:   number,
		Owner:    "helix-editor",
		Repo:     "helix",
		Branch:   branch,
		CloneURL: cloneURL,
		SHA:      sha,
		Title:    "pull request " + branch,
		HTMLURL:  "https://github.com/helix-editor/helix/pull/0",
	}
}
