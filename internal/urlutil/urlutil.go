// Package urlutil extracts repository identifiers from git remote URLs.
//
// It handles the three URL shapes GitHub hands out:
//   - HTTPS: https://github.com/owner/repo
//   - SSH colon: git@github.com:owner/repo
//   - SSH protocol: ssh://git@github.com/owner/repo
package urlutil

import "strings"

// ownerRepoParts is the number of trailing path components that make up an
// "owner/repo" identifier.
const ownerRepoParts = 2

// OwnerRepo extracts the trailing "owner/repo" from a git remote URL.
// A ".git" suffix and trailing slash are stripped first. Returns "" when
// the URL does not contain enough path components; validating the result
// is up to the caller.
//
// Examples:
//
//	OwnerRepo("git@github.com:helix-editor/helix.git") → "helix-editor/helix"
//	OwnerRepo("https://github.com/helix-editor/helix") → "helix-editor/helix"
func OwnerRepo(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	// SSH colon format puts the path after the last colon; both other
	// formats are slash-separated.
	if strings.HasPrefix(url, "git@") {
		if _, path, ok := strings.Cut(url, ":"); ok {
			return path
		}
		return ""
	}

	parts := strings.Split(url, "/")
	if len(parts) < ownerRepoParts {
		return ""
	}
	return strings.Join(parts[len(parts)-ownerRepoParts:], "/")
}
