package pipeline

import "errors"

var (
	// ErrAlreadyRunning is returned when another patchwork process holds
	// the repository lock.
	ErrAlreadyRunning = errors.New("another patchwork run is in progress")

	// ErrDirtyWorktree is returned when the worktree has uncommitted
	// changes. The run mutates branches and refuses to start until the
	// tree is clean.
	ErrDirtyWorktree = errors.New("worktree has uncommitted changes")

	// ErrBaseBranchNotFound is returned when the configured base branch
	// does not exist on the base repository.
	ErrBaseBranchNotFound = errors.New("base branch not found on remote")

	// ErrBranchNameConflict is returned when the configured working branch
	// exists but was not created by patchwork.
	ErrBranchNameConflict = errors.New("working branch exists and is not owned by patchwork")

	// ErrWorkingBranchKept is returned under on-rerun = "keep" when the
	// working branch from a previous run is still there.
	ErrWorkingBranchKept = errors.New(`working branch already exists and on-rerun is "keep"`)

	// ErrPinnedRevisionNotFound is returned when a pinned commit cannot be
	// found on the branch it pins.
	ErrPinnedRevisionNotFound = errors.New("pinned revision not found on fetched branch")

	// ErrPatchFileNotFound is returned when a configured patch file is
	// missing from the configuration directory.
	ErrPatchFileNotFound = errors.New("patch file not found")

	// ErrConfirmationDeclined is returned when the user declines to reset
	// the working branch.
	ErrConfirmationDeclined = errors.New("confirmation declined")
)
