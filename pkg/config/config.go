// Package config handles loading and validation of the patchwork
// configuration file.
//
// The file lives at <git-root>/.patchwork/config.toml and declares the base
// repository and the ordered lists of pull requests, branches and patches
// to combine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/patchwork-cli/patchwork/pkg/refspec"
)

const (
	// DefaultRoot is the configuration directory relative to the git root.
	// Patch files live next to config.toml in this directory.
	DefaultRoot = ".patchwork"

	// FileName is the configuration file name inside the config root.
	FileName = "config.toml"

	// RootEnv overrides DefaultRoot when set.
	RootEnv = "PATCHWORK_CONFIG_ROOT"
)

// RerunPolicy decides what happens when the working branch already exists
// from a previous run.
type RerunPolicy string

const (
	// RerunReset recreates the working branch from the base branch tip.
	RerunReset RerunPolicy = "reset"
	// RerunKeep refuses to touch an existing working branch, leaving any
	// in-progress conflict resolution in place.
	RerunKeep RerunPolicy = "keep"
)

// fileConfig mirrors the on-disk TOML document. Reference strings are kept
// raw here and parsed into typed references by Load.
type fileConfig struct {
	Repo         string   `toml:"repo"`
	RemoteBranch string   `toml:"remote-branch"`
	LocalBranch  string   `toml:"local-branch"`
	PullRequests []string `toml:"pull-requests"`
	Branches     []string `toml:"branches"`
	Patches      []string `toml:"patches"`
	OnRerun      string   `toml:"on-rerun"`
}

// Config is the validated, fully parsed configuration.
type Config struct {
	// Repo is the "owner/repo" hosting the base branch and, by default,
	// the pull requests.
	Repo string
	// BaseBranch is the branch of Repo the working branch starts from.
	BaseBranch string
	// BasePin optionally pins the base branch to a commit.
	BasePin string
	// LocalBranch is the working branch owned by the tool.
	LocalBranch string

	PullRequests []refspec.PullRequest
	Branches     []refspec.Branch
	Patches      []refspec.Patch

	OnRerun RerunPolicy

	// Dir is the absolute path of the configuration directory; patch
	// files are read from and written to it.
	Dir string
}

// Root returns the configuration directory name, honoring RootEnv.
func Root() string {
	if root := os.Getenv(RootEnv); root != "" {
		return root
	}
	return DefaultRoot
}

// Load reads and parses the configuration under the given git root.
func Load(gitRoot string) (*Config, error) {
	dir := filepath.Join(gitRoot, Root())
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path) // #nosec G304 - path is derived from the repository root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedConfig, path, err)
	}

	cfg, err := parse(&raw)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	cfg.Dir = dir

	return cfg, nil
}

// parse converts the raw document into a validated Config.
func parse(raw *fileConfig) (*Config, error) {
	if raw.Repo == "" {
		return nil, fmt.Errorf("%w: repo", ErrMissingField)
	}
	if !isOwnerRepo(raw.Repo) {
		return nil, fmt.Errorf("%w: repo %q, expected \"owner/repo\"", ErrMalformedConfig, raw.Repo)
	}
	if raw.RemoteBranch == "" {
		return nil, fmt.Errorf("%w: remote-branch", ErrMissingField)
	}
	if raw.LocalBranch == "" {
		return nil, fmt.Errorf("%w: local-branch", ErrMissingField)
	}

	// remote-branch is a bare branch name with an optional pin; reuse the
	// branch grammar by prepending the configured repo.
	base, err := refspec.ParseBranch(raw.Repo + "/" + raw.RemoteBranch)
	if err != nil {
		return nil, fmt.Errorf("remote-branch: %w", err)
	}

	cfg := &Config{
		Repo:        raw.Repo,
		BaseBranch:  base.Name,
		BasePin:     base.Pin,
		LocalBranch: raw.LocalBranch,
		OnRerun:     RerunReset,
	}

	for _, s := range raw.PullRequests {
		pr, err := refspec.ParsePullRequest(s)
		if err != nil {
			return nil, fmt.Errorf("pull-requests: %w", err)
		}
		cfg.PullRequests = append(cfg.PullRequests, pr)
	}

	for _, s := range raw.Branches {
		b, err := refspec.ParseBranch(s)
		if err != nil {
			return nil, fmt.Errorf("branches: %w", err)
		}
		cfg.Branches = append(cfg.Branches, b)
	}

	for _, s := range raw.Patches {
		p, err := refspec.ParsePatch(s)
		if err != nil {
			return nil, fmt.Errorf("patches: %w", err)
		}
		cfg.Patches = append(cfg.Patches, p)
	}

	if raw.OnRerun != "" {
		policy := RerunPolicy(raw.OnRerun)
		if policy != RerunReset && policy != RerunKeep {
			return nil, fmt.Errorf("%w: on-rerun %q, expected %q or %q",
				ErrMalformedConfig, raw.OnRerun, RerunReset, RerunKeep)
		}
		cfg.OnRerun = policy
	}

	return cfg, nil
}

// PatchPath returns the on-disk path for a named patch.
func (c *Config) PatchPath(p refspec.Patch) string {
	return filepath.Join(c.Dir, p.Name+".patch")
}

func isOwnerRepo(s string) bool {
	owner, repo, found := strings.Cut(s, "/")
	return found && owner != "" && repo != "" && !strings.Contains(repo, "/")
}

// Example is the config file written by `patchwork init`.
const Example = `# Configuration for patchwork
#
# The repository hosting the base branch and the pull requests below.
repo = "helix-editor/helix"

# Branch of the remote repository the working branch is built from.
# An optional " @ <commit>" suffix pins it to a specific commit.
remote-branch = "master"

# Local branch where patchwork does all of its work.
# Warning: this branch is owned by patchwork and will be overwritten.
local-branch = "patchwork"

# Pull requests to merge, in order. "#123", "123" and "123 @ <commit>"
# are all accepted.
pull-requests = []

# Branches of other repositories to merge, in order:
# "owner/repo/branch" with an optional " @ <commit>" pin.
branches = []

# Patch files (without the .patch extension) from this directory to apply,
# in order. Generate them with: patchwork gen-patch <commit>
patches = []

# What to do when the working branch already exists from a previous run:
# "reset" recreates it from the base branch, "keep" refuses to touch it.
on-rerun = "reset"
`
