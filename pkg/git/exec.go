package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// execGit runs a git command in the repository root and returns its
// combined output. Errors include the command line and git's own message.
func (r *Repository) execGit(ctx context.Context, args ...string) (string, error) {
	r.log.Debug("$ git " + strings.Join(args, " "))

	cmdArgs := append([]string{"-C", r.root}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	output, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(output))
	if err != nil {
		if ctx.Err() != nil {
			return trimmed, fmt.Errorf("%w: git %s", ErrTimeout, strings.Join(args, " "))
		}
		return trimmed, fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, trimmed)
	}
	return trimmed, nil
}

// execGitStdout runs a git command and returns stdout only, unmodified.
// Used where output bytes matter, such as format-patch.
func (r *Repository) execGitStdout(ctx context.Context, args ...string) ([]byte, error) {
	r.log.Debug("$ git " + strings.Join(args, " "))

	cmdArgs := append([]string{"-C", r.root}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: git %s", ErrTimeout, strings.Join(args, " "))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("git %s failed: %w: %s",
				strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return output, nil
}

// MergeSquash stages the changes of branch onto the current branch without
// committing, the way `git merge --squash` does. On conflict the worktree
// is left with conflict markers in place for inspection and a
// *ConflictError is returned.
func (r *Repository) MergeSquash(ctx context.Context, branch string) error {
	output, err := r.execGit(ctx, "merge", "--squash", branch)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return err
		}
		return &ConflictError{Op: "merge", Ref: branch, Output: output, Err: err}
	}
	return nil
}

// StagedChanges reports whether the index differs from HEAD. A squash merge
// of an already-applied branch stages nothing, in which case there is
// nothing to commit.
func (r *Repository) StagedChanges(ctx context.Context) (bool, error) {
	_, err := r.execGit(ctx, "diff", "--cached", "--quiet")
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return false, err
		}
		// diff --quiet exits non-zero when there are staged changes.
		return true, nil
	}
	return false, nil
}

// Commit records the staged changes with the given message.
func (r *Repository) Commit(ctx context.Context, message string) error {
	if _, err := r.execGit(ctx, "commit", "--no-verify", "--message", message); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ApplyPatch applies a mailbox-format patch file as a commit. On failure
// the in-progress apply is aborted so the branch stays at its last good
// commit, and a *ConflictError is returned.
func (r *Repository) ApplyPatch(ctx context.Context, path string) error {
	output, err := r.execGit(ctx, "am", "--keep-cr", path)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return err
		}
		// Restore the worktree; a half-applied mailbox is not inspectable
		// the way a conflicted merge is.
		if _, abortErr := r.execGit(ctx, "am", "--abort"); abortErr != nil {
			r.log.Warn("failed to abort patch application", "error", abortErr)
		}
		return &ConflictError{Op: "apply", Ref: path, Output: output, Err: err}
	}
	return nil
}

// LastCommitSubject returns the first line of the given commit's message.
func (r *Repository) LastCommitSubject(ctx context.Context, rev string) (string, error) {
	out, err := r.execGit(ctx, "log", "--format=%s", "--max-count=1", rev)
	if err != nil {
		return "", err
	}
	return out, nil
}

// FormatPatch renders the commits of revisionRange in mailbox format. A
// range expression (containing "..") captures every commit in it; a single
// revision captures exactly that commit. Output is returned byte for byte
// as git produced it, so regenerating the same range yields identical
// bytes.
func (r *Repository) FormatPatch(ctx context.Context, revisionRange string) ([]byte, error) {
	args := []string{"format-patch", "--stdout"}
	if strings.Contains(revisionRange, "..") {
		args = append(args, revisionRange)
	} else {
		args = append(args, "-1", revisionRange)
	}
	return r.execGitStdout(ctx, args...)
}

// RevList returns the commit hashes contained in revisionRange, newest
// first. A single revision is treated as a one-commit range.
func (r *Repository) RevList(ctx context.Context, revisionRange string) ([]string, error) {
	args := []string{"rev-list"}
	if strings.Contains(revisionRange, "..") {
		args = append(args, revisionRange)
	} else {
		args = append(args, "--max-count=1", revisionRange)
	}

	out, err := r.execGitStdout(ctx, args...)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}
