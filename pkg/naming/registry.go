package naming

import (
	"errors"
	"fmt"
)

// ErrNameCollision is returned when two distinct references would be
// assigned the same local branch or remote name within one run.
var ErrNameCollision = errors.New("name collision")

// Registry records the name assignments of a single run. It is owned by the
// pipeline and passed by handle to whoever needs to assign names, so a
// run's identifiers are reproducible from its configuration alone.
type Registry struct {
	remotes  map[string]string // remote name -> identity that claimed it
	branches map[string]string // local branch name -> identity that claimed it
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		remotes:  make(map[string]string),
		branches: make(map[string]string),
	}
}

// ClaimRemote records that identity owns the given remote name. Remotes are
// shared: two branches of the same repository claim the same remote under
// the same repository identity, which is a no-op. A claim under a different
// identity fails.
func (r *Registry) ClaimRemote(identity, name string) error {
	if owner, ok := r.remotes[name]; ok && owner != identity {
		return fmt.Errorf("%w: remote %q claimed by both %s and %s",
			ErrNameCollision, name, owner, identity)
	}
	r.remotes[name] = identity
	return nil
}

// ClaimBranch records that identity owns the given local branch name.
// Claiming again with the same identity is a no-op; a claim under a
// different identity fails.
func (r *Registry) ClaimBranch(identity, name string) error {
	if owner, ok := r.branches[name]; ok && owner != identity {
		return fmt.Errorf("%w: branch %q claimed by both %s and %s",
			ErrNameCollision, name, owner, identity)
	}
	r.branches[name] = identity
	return nil
}
