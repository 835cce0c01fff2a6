// Package pipeline implements the patchwork run: fetch every configured
// reference, then integrate them in order onto a disposable working branch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/patchwork-cli/patchwork/internal/logger"
	"github.com/patchwork-cli/patchwork/internal/timeutil"
	"github.com/patchwork-cli/patchwork/pkg/config"
	"github.com/patchwork-cli/patchwork/pkg/git"
	"github.com/patchwork-cli/patchwork/pkg/github"
	"github.com/patchwork-cli/patchwork/pkg/naming"
)

// DefaultTimeout bounds each network operation of a run.
const DefaultTimeout = 60 * time.Second

// lockFileName lives under .git so it never shows up in the worktree.
const lockFileName = "patchwork.lock"

// Pipeline drives one patchwork run over a repository.
type Pipeline struct {
	cfg      *config.Config
	repo     *git.Repository
	resolver github.Resolver

	log     logger.Logger
	confirm func(string) bool
	timeout time.Duration
}

// New creates a pipeline. The default confirm function declines, so callers
// must install a prompt (or --yes) before runs that reset an existing
// working branch.
func New(cfg *config.Config, repo *git.Repository, resolver github.Resolver) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		repo:     repo,
		resolver: resolver,
		log:      logger.NoLogger(),
		confirm:  func(string) bool { return false },
		timeout:  DefaultTimeout,
	}
}

// SetLogger replaces the pipeline's logger.
func (p *Pipeline) SetLogger(log logger.Logger) {
	p.log = log
}

// SetConfirm installs the function consulted before destructive branch
// resets.
func (p *Pipeline) SetConfirm(confirm func(string) bool) {
	p.confirm = confirm
}

// SetTimeout bounds each individual network operation.
func (p *Pipeline) SetTimeout(d time.Duration) {
	p.timeout = d
}

// Run executes the pipeline: plan names, prepare the base and working
// branches, then fetch and integrate every configured reference in order.
//
// A fetch failure marks its item failed and the run moves on; an
// integration failure stops the run, marking the remaining items skipped
// and leaving the worktree in place for inspection. An empty configuration
// is a successful no-op run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()

	lock := flock.New(filepath.Join(p.repo.Root(), ".git", lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	defer func() { _ = lock.Unlock() }()

	items, err := p.plan()
	if err != nil {
		return nil, err
	}

	clean, err := p.repo.IsClean()
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, ErrDirtyWorktree
	}

	base, err := p.prepareBase(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.prepareWorkingBranch(base); err != nil {
		return nil, err
	}

	result := &RunResult{}
	aborted := false
	for _, item := range items {
		if aborted {
			result.Outcomes = append(result.Outcomes, Outcome{
				Item:   item,
				Status: StatusSkipped,
				Reason: ReasonPreviousFailure,
			})
			continue
		}

		outcome := p.process(ctx, item)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Status == StatusFailed && outcome.Reason == ReasonConflict {
			aborted = true
		}
	}

	p.cleanup(result)

	p.log.Info("run finished",
		"applied", result.Count(StatusApplied),
		"failed", result.Count(StatusFailed),
		"skipped", result.Count(StatusSkipped),
		"elapsed", timeutil.FormatDuration(time.Since(start)))
	return result, nil
}

// cleanup removes the per-item remotes of items that applied cleanly. The
// fetched branches stay: a pinned item whose branch already sits at its pin
// re-runs without touching the network. Remotes of failed items also stay,
// for inspection.
func (p *Pipeline) cleanup(result *RunResult) {
	for _, outcome := range result.Outcomes {
		if outcome.Status != StatusApplied || outcome.Item.Remote == "" {
			continue
		}
		if err := p.repo.RemoveRemote(outcome.Item.Remote); err != nil {
			p.log.Warn("failed to remove remote", "remote", outcome.Item.Remote, "error", err)
		}
	}
}

// plan assigns local names to every configured reference and fixes the
// integration order: pull requests, then branches, then patches, keeping
// the configuration order within each list.
func (p *Pipeline) plan() ([]*WorkItem, error) {
	registry := naming.NewRegistry()
	var items []*WorkItem

	for _, pr := range p.cfg.PullRequests {
		names := naming.ForPullRequest(pr)
		identity := "pull request " + pr.String()
		if pr.Repo != "" {
			identity += " of " + pr.Repo
		}
		if err := registry.ClaimRemote(identity, names.Remote); err != nil {
			return nil, err
		}
		if err := registry.ClaimBranch(identity, names.LocalBranch); err != nil {
			return nil, err
		}
		items = append(items, &WorkItem{
			Kind:        KindPullRequest,
			PullRequest: pr,
			Remote:      names.Remote,
			LocalBranch: names.LocalBranch,
			Index:       len(items),
		})
	}

	for _, b := range p.cfg.Branches {
		names := naming.ForBranch(b)
		// The remote belongs to the repository, so branches of the same
		// repository share it.
		if err := registry.ClaimRemote("repository "+b.OwnerRepo(), names.Remote); err != nil {
			return nil, err
		}
		if err := registry.ClaimBranch("branch "+b.String(), names.LocalBranch); err != nil {
			return nil, err
		}
		items = append(items, &WorkItem{
			Kind:        KindBranch,
			Branch:      b,
			Remote:      names.Remote,
			LocalBranch: names.LocalBranch,
			Index:       len(items),
		})
	}

	for _, patch := range p.cfg.Patches {
		items = append(items, &WorkItem{
			Kind:  KindPatch,
			Patch: patch,
			Index: len(items),
		})
	}

	return items, nil
}

// prepareBase fetches the configured base branch and returns the commit the
// working branch starts from, honoring the base pin.
func (p *Pipeline) prepareBase(ctx context.Context) (string, error) {
	owner, name, err := github.SplitRepo(p.cfg.Repo)
	if err != nil {
		return "", err
	}

	octx, cancel := context.WithTimeout(ctx, p.timeout)
	url, err := p.resolver.RepoCloneURL(octx, owner, name)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to resolve base repository: %w", err)
	}

	if err := p.repo.AddRemote(naming.UpstreamRemote(), url); err != nil {
		return "", err
	}

	baseLocal := naming.BaseLocalBranch(p.cfg.BaseBranch)
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	err = p.repo.FetchBranch(fctx, naming.UpstreamRemote(), p.cfg.BaseBranch, baseLocal)
	cancel()
	if err != nil {
		if errors.Is(err, git.ErrRefNotFound) {
			return "", fmt.Errorf("%w: %s on %s", ErrBaseBranchNotFound, p.cfg.BaseBranch, p.cfg.Repo)
		}
		return "", err
	}

	start := baseLocal
	if p.cfg.BasePin != "" {
		hash, err := p.repo.ResolveCommit(p.cfg.BasePin)
		if err != nil {
			return "", fmt.Errorf("%w: base pin %s", ErrPinnedRevisionNotFound, p.cfg.BasePin)
		}
		ok, err := p.repo.IsAncestor(hash, baseLocal)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: base pin %s is not on %s", ErrPinnedRevisionNotFound, p.cfg.BasePin, p.cfg.BaseBranch)
		}
		start = hash
	}

	return p.repo.ResolveCommit(start)
}

// prepareWorkingBranch creates or resets the configured working branch at
// the base commit and checks it out. An existing branch the tool does not
// own is never touched without explicit confirmation.
func (p *Pipeline) prepareWorkingBranch(base string) error {
	name := p.cfg.LocalBranch

	if p.repo.BranchExists(name) {
		if !p.repo.IsOwned(name) {
			if p.cfg.OnRerun != config.RerunReset {
				return fmt.Errorf("%w: %s", ErrBranchNameConflict, name)
			}
			if !p.confirm(fmt.Sprintf("Branch %q was not created by patchwork. Reset it anyway?", name)) {
				return fmt.Errorf("%w: %s", ErrBranchNameConflict, name)
			}
		} else {
			if p.cfg.OnRerun == config.RerunKeep {
				return fmt.Errorf("%w: %s", ErrWorkingBranchKept, name)
			}
			if !p.confirm(fmt.Sprintf("Reset branch %q and rebuild it from %s?", name, p.cfg.BaseBranch)) {
				return fmt.Errorf("%w: keeping branch %s", ErrConfirmationDeclined, name)
			}
		}
	}

	if err := p.repo.SetBranch(name, base); err != nil {
		return err
	}
	if err := p.repo.MarkOwned(name); err != nil {
		return err
	}
	if err := p.repo.CheckoutForce(name); err != nil {
		return err
	}

	p.log.Info("working branch ready", "branch", name, "base", base)
	return nil
}

// process materializes and integrates one item, translating errors into an
// outcome.
func (p *Pipeline) process(ctx context.Context, item *WorkItem) Outcome {
	if err := p.materialize(ctx, item); err != nil {
		reason := ReasonFetch
		switch {
		case errors.Is(err, ErrPinnedRevisionNotFound):
			reason = ReasonPin
		case errors.Is(err, ErrPatchFileNotFound):
			reason = ReasonMissingPatch
		}
		p.log.Error("failed to fetch", "item", item.Describe(), "error", err)
		return Outcome{Item: item, Status: StatusFailed, Reason: reason, Err: err}
	}

	if err := p.integrate(ctx, item); err != nil {
		p.log.Error("failed to integrate", "item", item.Describe(), "error", err)
		return Outcome{Item: item, Status: StatusFailed, Reason: ReasonConflict, Err: err}
	}

	p.log.Info("applied", "item", item.Describe())
	return Outcome{Item: item, Status: StatusApplied}
}

// materialize makes an item's changes available locally: fetched for pull
// requests and branches, present on disk for patches.
func (p *Pipeline) materialize(ctx context.Context, item *WorkItem) error {
	switch item.Kind {
	case KindPullRequest:
		return p.materializePullRequest(ctx, item)
	case KindBranch:
		return p.materializeBranch(ctx, item)
	case KindPatch:
		path := p.cfg.PatchPath(item.Patch)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", ErrPatchFileNotFound, path)
		}
		return nil
	}
	return nil
}

func (p *Pipeline) materializePullRequest(ctx context.Context, item *WorkItem) error {
	if p.pinSatisfied(item) {
		p.log.Debug("already at pinned revision", "item", item.Describe())
		return nil
	}

	repo := item.PullRequest.Repo
	if repo == "" {
		repo = p.cfg.Repo
	}

	octx, cancel := context.WithTimeout(ctx, p.timeout)
	head, err := p.resolver.ResolvePullRequest(octx, repo, item.PullRequest.Number)
	cancel()
	if err != nil {
		return err
	}
	p.log.Debug("resolved pull request",
		"item", item.Describe(), "head", head.Owner+"/"+head.Repo+"/"+head.Branch)

	if err := p.repo.AddRemote(item.Remote, head.CloneURL); err != nil {
		return err
	}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	err = p.repo.FetchBranch(fctx, item.Remote, head.Branch, item.LocalBranch)
	cancel()
	if err != nil {
		return err
	}

	return p.applyPin(item)
}

func (p *Pipeline) materializeBranch(ctx context.Context, item *WorkItem) error {
	if p.pinSatisfied(item) {
		p.log.Debug("already at pinned revision", "item", item.Describe())
		return nil
	}

	octx, cancel := context.WithTimeout(ctx, p.timeout)
	url, err := p.resolver.RepoCloneURL(octx, item.Branch.Owner, item.Branch.Repo)
	cancel()
	if err != nil {
		return err
	}

	if err := p.repo.AddRemote(item.Remote, url); err != nil {
		return err
	}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	err = p.repo.FetchBranch(fctx, item.Remote, item.Branch.Name, item.LocalBranch)
	cancel()
	if err != nil {
		return err
	}

	return p.applyPin(item)
}

// pinSatisfied reports whether a pinned item's local branch already sits at
// its pin, in which case the network is skipped entirely.
func (p *Pipeline) pinSatisfied(item *WorkItem) bool {
	pin := item.Pin()
	if pin == "" || !p.repo.BranchExists(item.LocalBranch) {
		return false
	}
	pinHash, err := p.repo.ResolveCommit(pin)
	if err != nil {
		return false
	}
	tip, err := p.repo.ResolveCommit(item.LocalBranch)
	if err != nil {
		return false
	}
	return pinHash == tip
}

// applyPin resets the fetched branch to the item's pin. The pin must be an
// ancestor of what was fetched; anything else means the configured commit
// does not belong to this reference.
func (p *Pipeline) applyPin(item *WorkItem) error {
	pin := item.Pin()
	if pin == "" {
		return nil
	}

	hash, err := p.repo.ResolveCommit(pin)
	if err != nil {
		return fmt.Errorf("%w: %s pinned to %s", ErrPinnedRevisionNotFound, item.Describe(), pin)
	}
	ok, err := p.repo.IsAncestor(hash, item.LocalBranch)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not on %s", ErrPinnedRevisionNotFound, pin, item.LocalBranch)
	}

	tip, err := p.repo.ResolveCommit(item.LocalBranch)
	if err != nil {
		return err
	}
	if tip != hash {
		if err := p.repo.SetBranch(item.LocalBranch, hash); err != nil {
			return err
		}
	}
	return nil
}

// integrate lands an item's changes on the working branch: a squash merge
// plus commit for fetched branches, git am for patch files.
func (p *Pipeline) integrate(ctx context.Context, item *WorkItem) error {
	if item.Kind == KindPatch {
		return p.repo.ApplyPatch(ctx, p.cfg.PatchPath(item.Patch))
	}

	if err := p.repo.MergeSquash(ctx, item.LocalBranch); err != nil {
		return err
	}

	staged, err := p.repo.StagedChanges(ctx)
	if err != nil {
		return err
	}
	if !staged {
		p.log.Debug("nothing to commit", "item", item.Describe())
		return nil
	}

	return p.repo.Commit(ctx, "patchwork: merge "+item.Describe())
}
