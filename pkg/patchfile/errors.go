package patchfile

import "errors"

var (
	// ErrEmptyRange is returned when the revision range contains no commits.
	ErrEmptyRange = errors.New("revision range contains no commits")

	// ErrAmbiguousRevision is returned when a revision expression matches
	// more than one object.
	ErrAmbiguousRevision = errors.New("ambiguous revision")
)
