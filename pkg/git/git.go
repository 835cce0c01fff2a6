// Package git wraps the local repository operations patchwork needs.
//
// Reference and remote plumbing goes through go-git; the few operations
// go-git does not implement (squash merges, mailbox patches, format-patch)
// shell out to the git binary with a bounded context.
package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/patchwork-cli/patchwork/internal/logger"
	"github.com/patchwork-cli/patchwork/internal/security"
)

// ownedRefPrefix marks branches created by this tool. The marker lets a
// later run distinguish its own working branch from an unrelated user
// branch that happens to share the name.
const ownedRefPrefix = "refs/patchwork/owned/"

// Repository is a local git repository.
type Repository struct {
	repo *gogit.Repository
	root string
	log  logger.Logger
}

// Open finds the repository containing path, walking up parent directories
// the way `git rev-parse --show-toplevel` does.
func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	return &Repository{
		repo: repo,
		root: wt.Filesystem.Root(),
		log:  logger.NoLogger(),
	}, nil
}

// SetLogger replaces the repository's logger.
func (r *Repository) SetLogger(log logger.Logger) {
	r.log = log
}

// Root returns the worktree root directory.
func (r *Repository) Root() string {
	return r.root
}

// BranchExists reports whether a local branch with the given name exists.
func (r *Repository) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	return err == nil
}

// CurrentBranch returns the short name of the branch HEAD points at.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// IsClean reports whether the worktree has no uncommitted changes to
// tracked files. Untracked files do not count: the configuration directory
// itself is often untracked.
func (r *Repository) IsClean() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get repository status: %w", err)
	}

	for _, s := range status {
		if s.Staging == gogit.Untracked && s.Worktree == gogit.Untracked {
			continue
		}
		if s.Staging != gogit.Unmodified || s.Worktree != gogit.Unmodified {
			return false, nil
		}
	}
	return true, nil
}

// AddRemote ensures a remote with the given name points at url. An existing
// remote is reused when its URL matches and replaced when it does not.
func (r *Repository) AddRemote(name, url string) error {
	existing, err := r.repo.Remote(name)
	if err == nil {
		urls := existing.Config().URLs
		if len(urls) > 0 && urls[0] == url {
			return nil
		}
		if err := r.repo.DeleteRemote(name); err != nil {
			return fmt.Errorf("failed to replace remote %s: %w", name, err)
		}
	} else if !errors.Is(err, gogit.ErrRemoteNotFound) {
		return fmt.Errorf("failed to look up remote %s: %w", name, err)
	}

	_, err = r.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("failed to add remote %s: %w", name, err)
	}
	return nil
}

// RemoveRemote deletes a remote. Removing an absent remote is not an error.
func (r *Repository) RemoveRemote(name string) error {
	err := r.repo.DeleteRemote(name)
	if err != nil && !errors.Is(err, gogit.ErrRemoteNotFound) {
		return fmt.Errorf("failed to remove remote %s: %w", name, err)
	}
	return nil
}

// RemoteURL returns the first URL of the named remote.
func (r *Repository) RemoteURL(name string) (string, error) {
	remote, err := r.repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("failed to get remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("no URLs configured for remote %s", name)
	}
	return urls[0], nil
}

// FetchBranch fetches upstreamBranch from the named remote into the local
// branch localBranch, force-updating it if it already exists.
func (r *Repository) FetchBranch(ctx context.Context, remote, upstreamBranch, localBranch string) error {
	r.log.Debug("fetching branch", "remote", remote, "branch", upstreamBranch, "into", localBranch)

	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/heads/%s", upstreamBranch, localBranch))
	err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Tags:       gogit.NoTags,
		Force:      true,
	})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: fetching %s from %s", ErrFetchTimeout, upstreamBranch, remote)
		}
		var noMatch gogit.NoMatchingRefSpecError
		if errors.As(err, &noMatch) {
			return fmt.Errorf("%w: branch %s on remote %s", ErrRefNotFound, upstreamBranch, remote)
		}
		// Transport errors can quote the remote URL, which can carry
		// credentials.
		return fmt.Errorf("%w: fetching %s from %s: %s",
			ErrNetwork, upstreamBranch, remote, security.SanitizeError(err))
	}
	return nil
}

// ResolveCommit resolves any revision expression to a full commit hash.
func (r *Repository) ResolveCommit(rev string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRevisionNotFound, rev)
	}
	return hash.String(), nil
}

// SetBranch creates the branch or force-resets it to the given commit.
// The working tree is not touched.
func (r *Repository) SetBranch(name, commit string) error {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRevisionNotFound, commit)
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), *hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to set branch %s: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a local branch reference.
func (r *Repository) DeleteBranch(name string) error {
	if err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}

// Checkout switches the worktree to the named branch.
func (r *Repository) Checkout(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	})
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %w", name, err)
	}
	return nil
}

// CheckoutForce is Checkout discarding any local changes. Only used on the
// working branch the tool owns.
func (r *Repository) CheckoutForce(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %w", name, err)
	}
	return nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Repository) IsAncestor(ancestor, descendant string) (bool, error) {
	ancestorHash, err := r.repo.ResolveRevision(plumbing.Revision(ancestor))
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrRevisionNotFound, ancestor)
	}
	descendantHash, err := r.repo.ResolveRevision(plumbing.Revision(descendant))
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrRevisionNotFound, descendant)
	}

	ancestorCommit, err := r.repo.CommitObject(*ancestorHash)
	if err != nil {
		return false, fmt.Errorf("failed to read commit %s: %w", ancestor, err)
	}
	descendantCommit, err := r.repo.CommitObject(*descendantHash)
	if err != nil {
		return false, fmt.Errorf("failed to read commit %s: %w", descendant, err)
	}

	ok, err := ancestorCommit.IsAncestor(descendantCommit)
	if err != nil {
		return false, fmt.Errorf("failed to walk history: %w", err)
	}
	return ok, nil
}

// MarkOwned records that the tool created the named branch.
func (r *Repository) MarkOwned(branch string) error {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(branch))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRevisionNotFound, branch)
	}
	ref := plumbing.NewHashReference(plumbing.ReferenceName(ownedRefPrefix+branch), *hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to mark branch %s: %w", branch, err)
	}
	return nil
}

// IsOwned reports whether the named branch was created by this tool.
func (r *Repository) IsOwned(branch string) bool {
	_, err := r.repo.Reference(plumbing.ReferenceName(ownedRefPrefix+branch), false)
	return err == nil
}
