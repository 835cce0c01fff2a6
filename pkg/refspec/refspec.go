// Package refspec parses the source-reference strings accepted in the
// patchwork configuration: pull request specs, branch specs and patch names.
//
// Each grammar has its own parse function; the caller chooses the grammar
// from context (which config list the string came from). References are
// never guessed by trying every grammar in turn.
package refspec

import (
	"fmt"
	"strconv"
	"strings"
)

// PinSeparator splits a reference from its pinned revision, e.g.
// "helix-editor/helix/master @ 6cc9c7b".
const PinSeparator = " @ "

const (
	minPinLength = 4
	maxPinLength = 40

	branchSpecMinSegments = 3
)

// PullRequest identifies a pull request by number, optionally restricted to
// a specific commit of its head branch.
type PullRequest struct {
	Number int
	// Repo optionally overrides the configured "owner/repo" the pull
	// request belongs to. Empty means use the configuration default.
	Repo string
	// Pin is a hex commit the fetched head is reset to. Empty means the
	// latest commit of the head branch.
	Pin string
}

func (p PullRequest) String() string {
	return "#" + strconv.Itoa(p.Number)
}

// Branch identifies a branch of a GitHub repository.
type Branch struct {
	Owner string
	Repo  string
	Name  string
	Pin   string
}

func (b Branch) String() string {
	return b.Owner + "/" + b.Repo + "/" + b.Name
}

// OwnerRepo returns the "owner/repo" form used in API calls.
func (b Branch) OwnerRepo() string {
	return b.Owner + "/" + b.Repo
}

// Patch names a patch file stored in the patches directory, without the
// ".patch" extension.
type Patch struct {
	Name string
}

func (p Patch) String() string {
	return p.Name
}

// ParsePullRequest parses a pull request spec: digits with an optional
// leading "#" and an optional pinned revision, e.g. "1234", "#1234" or
// "1234 @ a1b2c3d".
func ParsePullRequest(s string) (PullRequest, error) {
	head, pin, err := splitPin(s)
	if err != nil {
		return PullRequest{}, err
	}

	head = strings.TrimPrefix(head, "#")
	if head == "" {
		return PullRequest{}, fmt.Errorf("%w: empty pull request spec %q", ErrInvalidReferenceFormat, s)
	}

	number, err := strconv.Atoi(head)
	if err != nil || number <= 0 {
		return PullRequest{}, fmt.Errorf("%w: %q is not a pull request number", ErrInvalidReferenceFormat, head)
	}

	return PullRequest{Number: number, Pin: pin}, nil
}

// ParseBranch parses a branch spec of the form "owner/repo/branch" with an
// optional pinned revision. Branch names may themselves contain slashes:
// every segment after the second joins into the branch name.
func ParseBranch(s string) (Branch, error) {
	head, pin, err := splitPin(s)
	if err != nil {
		return Branch{}, err
	}

	parts := strings.Split(head, "/")
	if len(parts) < branchSpecMinSegments {
		return Branch{}, fmt.Errorf("%w: %q, expected owner/repo/branch", ErrInvalidReferenceFormat, s)
	}

	owner := parts[0]
	repo := parts[1]
	name := strings.Join(parts[2:], "/")

	if owner == "" || repo == "" || name == "" || strings.Contains(name, "//") ||
		strings.HasSuffix(name, "/") {
		return Branch{}, fmt.Errorf("%w: %q has an empty owner, repo or branch segment", ErrInvalidReferenceFormat, s)
	}

	return Branch{Owner: owner, Repo: repo, Name: name, Pin: pin}, nil
}

// ParsePatch parses a patch name. Patch names are bare file names relative
// to the patches directory and must not contain path separators.
func ParsePatch(s string) (Patch, error) {
	if s == "" {
		return Patch{}, fmt.Errorf("%w: empty patch name", ErrInvalidReferenceFormat)
	}
	if strings.ContainsAny(s, "/\\") || s == "." || s == ".." {
		return Patch{}, fmt.Errorf("%w: patch name %q must be a bare file name", ErrInvalidReferenceFormat, s)
	}

	return Patch{Name: strings.TrimSuffix(s, ".patch")}, nil
}

// splitPin separates an optional " @ <hex-commit>" suffix from a reference.
// The pin is normalized to lowercase. A reference may contain the separator
// at most once.
func splitPin(s string) (head, pin string, err error) {
	head, pin, found := strings.Cut(s, PinSeparator)
	if !found {
		return s, "", nil
	}

	head = strings.TrimSpace(head)
	pin = strings.ToLower(strings.TrimSpace(pin))

	if !isCommitHash(pin) {
		return "", "", fmt.Errorf("%w: %q is not a commit hash", ErrInvalidPinnedRevision, pin)
	}

	return head, pin, nil
}

// isCommitHash reports whether s could name a commit: hex characters only,
// between an abbreviated and a full SHA-1 in length. Existence is checked
// later, against the fetched branch.
func isCommitHash(s string) bool {
	if len(s) < minPinLength || len(s) > maxPinLength {
		return false
	}
	for _, ch := range s {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}
