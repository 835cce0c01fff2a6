// Package patchfile turns commits into mailbox-format patch files that the
// run pipeline can later apply with git am.
package patchfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchwork-cli/patchwork/pkg/git"
	"github.com/patchwork-cli/patchwork/pkg/naming"
)

// Extension is the suffix patch files carry on disk.
const Extension = ".patch"

// shortHashLen matches git's default abbreviated hash length.
const shortHashLen = 12

// Generate writes the commits of revisionRange as a patch file under dir
// and returns the file's path. A range expression ("base..tip") captures
// every commit in it; a single revision captures exactly that commit. When
// filename is empty the name is derived from the newest commit's subject.
//
// Output is git's format-patch bytes unmodified, so generating the same
// range twice yields identical files.
func Generate(ctx context.Context, repo *git.Repository, dir, revisionRange, filename string) (string, error) {
	commits, err := repo.RevList(ctx, revisionRange)
	if err != nil {
		if strings.Contains(err.Error(), "ambiguous") {
			return "", fmt.Errorf("%w: %s", ErrAmbiguousRevision, revisionRange)
		}
		return "", err
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyRange, revisionRange)
	}

	if filename == "" {
		filename, err = defaultName(ctx, repo, commits[0])
		if err != nil {
			return "", err
		}
	}
	if !strings.HasSuffix(filename, Extension) {
		filename += Extension
	}

	data, err := repo.FormatPatch(ctx, revisionRange)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write patch file: %w", err)
	}
	return path, nil
}

// defaultName derives a filename from the commit's subject line, falling
// back to the abbreviated hash when the subject slugs to nothing.
func defaultName(ctx context.Context, repo *git.Repository, commit string) (string, error) {
	subject, err := repo.LastCommitSubject(ctx, commit)
	if err != nil {
		return "", err
	}
	name := naming.Slug(subject)
	if name == "" {
		name = commit[:shortHashLen]
	}
	return name, nil
}
