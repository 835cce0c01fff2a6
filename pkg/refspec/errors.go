package refspec

import "errors"

var (
	// ErrInvalidReferenceFormat is returned when a reference string does not
	// match the grammar the caller selected.
	ErrInvalidReferenceFormat = errors.New("invalid reference format")

	// ErrInvalidPinnedRevision is returned when the " @ <commit>" suffix is
	// present but does not contain a plausible hex commit hash.
	ErrInvalidPinnedRevision = errors.New("invalid pinned revision")
)
