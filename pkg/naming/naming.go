// Package naming derives the local remote and branch names used for fetched
// references.
//
// Names are a pure function of a reference's identifying fields (never of
// its pinned revision), so repeated runs assign the same names, can detect
// already-fetched state, and re-pinning a reference does not orphan what a
// previous run fetched.
package naming

import (
	"fmt"
	"strings"

	"github.com/patchwork-cli/patchwork/pkg/refspec"
)

// Prefix namespaces every ref this tool creates, keeping them apart from
// user branches and remotes.
const Prefix = "patchwork"

// Names is the pair of local identifiers assigned to one reference.
type Names struct {
	// Remote is the name of the git remote pointing at the source repository.
	Remote string
	// LocalBranch is the branch the fetched commits land on.
	LocalBranch string
}

// ForPullRequest returns the names for a pull request reference.
// Distinct repositories hosting the same PR number get distinct names.
func ForPullRequest(pr refspec.PullRequest) Names {
	suffix := fmt.Sprintf("pr-%d", pr.Number)
	if pr.Repo != "" {
		suffix += "-" + Slug(pr.Repo)
	}
	return Names{
		Remote:      Prefix + "/" + suffix,
		LocalBranch: Prefix + "/" + suffix,
	}
}

// ForBranch returns the names for a branch reference. Owner and repository
// are part of the local branch name, so two repositories both contributing
// a branch called "main" never collide.
func ForBranch(b refspec.Branch) Names {
	return Names{
		Remote:      Prefix + "/" + Slug(b.Owner) + "-" + Slug(b.Repo),
		LocalBranch: Prefix + "/" + Slug(b.Owner) + "/" + Slug(b.Repo) + "/" + slugPath(b.Name),
	}
}

// UpstreamRemote is the remote name used for the configured base repository.
func UpstreamRemote() string {
	return Prefix + "/upstream"
}

// BaseLocalBranch returns the local branch that tracks the configured base
// branch.
func BaseLocalBranch(branch string) string {
	return Prefix + "/upstream/" + slugPath(branch)
}

// Slug converts s to characters that are valid in a git ref name:
// alphanumerics, '.', '-' and '_'. Anything else collapses to '-'.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range strings.ToLower(s) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '.', ch == '-', ch == '_':
			b.WriteRune(ch)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

// slugPath is Slug but keeps '/' so nested branch names stay nested.
func slugPath(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = Slug(p)
	}
	return strings.Join(parts, "/")
}
