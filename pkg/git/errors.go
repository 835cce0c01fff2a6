package git

import (
	"errors"
	"fmt"
)

var (
	// ErrDetachedHead is returned when HEAD does not point at a branch.
	ErrDetachedHead = errors.New("HEAD is not pointing to a branch")

	// ErrNetwork is returned when a fetch fails for transport reasons.
	ErrNetwork = errors.New("network error")

	// ErrFetchTimeout is returned when a fetch exceeds its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrTimeout is returned when a git subprocess exceeds its deadline.
	ErrTimeout = errors.New("git command timed out")

	// ErrRefNotFound is returned when a fetch refspec matches nothing on
	// the remote.
	ErrRefNotFound = errors.New("remote ref not found")

	// ErrRevisionNotFound is returned when a revision expression does not
	// resolve to a commit.
	ErrRevisionNotFound = errors.New("revision not found")
)

// ConflictError is returned when integrating changes into the current
// branch fails. Output carries git's own description of the conflict.
type ConflictError struct {
	// Op is the failed operation: "merge" or "apply".
	Op string
	// Ref is the branch or patch file being integrated.
	Ref string
	// Output is git's combined output, usually naming conflicting files.
	Output string
	// Err is the underlying command error.
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s of %s failed: %v", e.Op, e.Ref, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
