package pipeline_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/patchwork-cli/patchwork/pkg/config"
	"github.com/patchwork-cli/patchwork/pkg/git"
	"github.com/patchwork-cli/patchwork/pkg/patchfile"
	"github.com/patchwork-cli/patchwork/pkg/pipeline"
	"github.com/patchwork-cli/patchwork/pkg/refspec"
	"github.com/patchwork-cli/patchwork/testing/fixtures"
	"github.com/patchwork-cli/patchwork/testing/mocks"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// initRepo creates a repository with one commit on master.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	cfg.User.Name = "Test"
	cfg.User.Email = "test@example.com"
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("failed to set config: %v", err)
	}

	commitFile(t, dir, "file.txt", "base\n", "initial commit")
	return dir
}

func commitFile(t *testing.T, dir, file, contents, message string) string {
	t.Helper()

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := wt.Add(file); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

func checkout(t *testing.T, dir, branch string, create bool) {
	t.Helper()

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
		Force:  true,
	})
	if err != nil {
		t.Fatalf("failed to checkout %s: %v", branch, err)
	}
}

// testConfig builds a configuration pointing at the upstream fixture repo.
func testConfig(t *testing.T, workDir string) *config.Config {
	t.Helper()
	dir := filepath.Join(workDir, config.DefaultRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	return &config.Config{
		Repo:        fixtures.TestBaseRepo,
		BaseBranch:  "master",
		LocalBranch: "patchwork",
		OnRerun:     config.RerunReset,
		Dir:         dir,
	}
}

func newResolver(upstream string) *mocks.Resolver {
	r := mocks.NewResolver()
	r.CloneURLs[fixtures.TestBaseRepo] = upstream
	return r
}

func newPipeline(t *testing.T, cfg *config.Config, workDir string, resolver *mocks.Resolver) (*pipeline.Pipeline, *git.Repository) {
	t.Helper()
	repo, err := git.Open(workDir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	p := pipeline.New(cfg, repo, resolver)
	p.SetConfirm(func(string) bool { return true })
	return p, repo
}

func TestRunEmptyConfig(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	workDir := initRepo(t)
	cfg := testConfig(t, workDir)

	p, repo := newPipeline(t, cfg, workDir, newResolver(upstream))
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("outcomes = %d, want 0", len(result.Outcomes))
	}
	if result.Failed() {
		t.Error("empty run should not be failed")
	}

	// The working branch exists, is checked out, and sits at the base tip.
	current, err := repo.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch failed: %v", err)
	}
	if current != "patchwork" {
		t.Errorf("current branch = %q, want patchwork", current)
	}
	if !repo.IsOwned("patchwork") {
		t.Error("working branch should be marked as tool-owned")
	}
}

func TestRunAppliesBranchesInOrder(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-a", true)
	commitFile(t, upstream, "a.txt", "a\n", "add a")
	checkout(t, upstream, "master", false)
	checkout(t, upstream, "feat-b", true)
	commitFile(t, upstream, "b.txt", "b\n", "add b")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.Branches = []refspec.Branch{
		{Owner: "alice", Repo: "helix", Name: "feat-a"},
		{Owner: "bob", Repo: "helix", Name: "feat-b"},
	}

	resolver := newResolver(upstream)
	resolver.CloneURLs["alice/helix"] = upstream
	resolver.CloneURLs["bob/helix"] = upstream

	p, repo := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(result.Outcomes))
	}
	for i, o := range result.Outcomes {
		if o.Status != pipeline.StatusApplied {
			t.Errorf("outcome %d = %s (%v), want applied", i, o.Status, o.Err)
		}
	}
	if result.Outcomes[0].Item.Describe() != "alice/helix/feat-a" {
		t.Errorf("first item = %s", result.Outcomes[0].Item.Describe())
	}

	for _, f := range []string{"a.txt", "b.txt", "file.txt"} {
		if _, err := os.Stat(filepath.Join(workDir, f)); err != nil {
			t.Errorf("expected %s in working tree: %v", f, err)
		}
	}

	// Per-item remotes are removed after a clean apply; the fetched
	// branches stay.
	if _, err := repo.RemoteURL("patchwork/alice-helix"); err == nil {
		t.Error("remote of applied item should be removed")
	}
	if _, err := repo.ResolveCommit("patchwork/alice/helix/feat-a"); err != nil {
		t.Errorf("fetched branch should survive cleanup: %v", err)
	}
}

func TestRunBranchesOfSameRepo(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-a", true)
	commitFile(t, upstream, "a.txt", "a\n", "add a")
	checkout(t, upstream, "master", false)
	checkout(t, upstream, "feat-b", true)
	commitFile(t, upstream, "b.txt", "b\n", "add b")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.Branches = []refspec.Branch{
		{Owner: "alice", Repo: "helix", Name: "feat-a"},
		{Owner: "alice", Repo: "helix", Name: "feat-b"},
	}

	resolver := newResolver(upstream)
	resolver.CloneURLs["alice/helix"] = upstream

	p, _ := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, o := range result.Outcomes {
		if o.Status != pipeline.StatusApplied {
			t.Errorf("outcome %d = %s (%v), want applied", i, o.Status, o.Err)
		}
	}
	for _, f := range []string{"a.txt", "b.txt"} {
		if _, err := os.Stat(filepath.Join(workDir, f)); err != nil {
			t.Errorf("expected %s in working tree: %v", f, err)
		}
	}
}

func TestRunPullRequest(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-pr", true)
	sha := commitFile(t, upstream, "pr.txt", "pr\n", "pull request work")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.PullRequests = []refspec.PullRequest{{Number: fixtures.TestPRNumber}}

	resolver := newResolver(upstream)
	resolver.PullRequests[mocks.PullRequestKey(fixtures.TestBaseRepo, fixtures.TestPRNumber)] =
		fixtures.SameRepoPullRequestHead(fixtures.TestPRNumber, "feat-pr", upstream, sha)

	p, _ := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].Status != pipeline.StatusApplied {
		t.Fatalf("outcomes = %+v", result.Outcomes)
	}
	if _, err := os.Stat(filepath.Join(workDir, "pr.txt")); err != nil {
		t.Errorf("pull request file missing: %v", err)
	}
	if resolver.CallCount("ResolvePullRequest") != 1 {
		t.Errorf("ResolvePullRequest calls = %d, want 1", resolver.CallCount("ResolvePullRequest"))
	}
}

func TestRunConflictAbortsRemainingItems(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-a", true)
	commitFile(t, upstream, "file.txt", "alpha\n", "alpha edit")
	checkout(t, upstream, "master", false)
	checkout(t, upstream, "feat-b", true)
	commitFile(t, upstream, "file.txt", "beta\n", "beta edit")
	checkout(t, upstream, "master", false)
	checkout(t, upstream, "feat-c", true)
	commitFile(t, upstream, "c.txt", "c\n", "add c")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.Branches = []refspec.Branch{
		{Owner: "alice", Repo: "helix", Name: "feat-a"},
		{Owner: "bob", Repo: "helix", Name: "feat-b"},
		{Owner: "carol", Repo: "helix", Name: "feat-c"},
	}

	resolver := newResolver(upstream)
	for _, owner := range []string{"alice", "bob", "carol"} {
		resolver.CloneURLs[owner+"/helix"] = upstream
	}

	p, _ := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(result.Outcomes))
	}
	if result.Outcomes[0].Status != pipeline.StatusApplied {
		t.Errorf("first outcome = %s, want applied", result.Outcomes[0].Status)
	}
	if result.Outcomes[1].Status != pipeline.StatusFailed ||
		result.Outcomes[1].Reason != pipeline.ReasonConflict {
		t.Errorf("second outcome = %s/%s, want failed/conflict",
			result.Outcomes[1].Status, result.Outcomes[1].Reason)
	}
	var conflict *git.ConflictError
	if !errors.As(result.Outcomes[1].Err, &conflict) {
		t.Errorf("second outcome error = %v, want *git.ConflictError", result.Outcomes[1].Err)
	}
	if result.Outcomes[2].Status != pipeline.StatusSkipped ||
		result.Outcomes[2].Reason != pipeline.ReasonPreviousFailure {
		t.Errorf("third outcome = %s/%s, want skipped/previous failure",
			result.Outcomes[2].Status, result.Outcomes[2].Reason)
	}
	if !result.Failed() {
		t.Error("run with a conflict should report failure")
	}
}

func TestRunFetchFailureContinues(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-a", true)
	commitFile(t, upstream, "a.txt", "a\n", "add a")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	// PR 999 is not configured in the mock, so resolution 404s.
	cfg.PullRequests = []refspec.PullRequest{{Number: 999}}
	cfg.Branches = []refspec.Branch{{Owner: "alice", Repo: "helix", Name: "feat-a"}}

	resolver := newResolver(upstream)
	resolver.CloneURLs["alice/helix"] = upstream

	p, _ := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Outcomes[0].Status != pipeline.StatusFailed ||
		result.Outcomes[0].Reason != pipeline.ReasonFetch {
		t.Errorf("first outcome = %s/%s, want failed/fetch",
			result.Outcomes[0].Status, result.Outcomes[0].Reason)
	}
	if result.Outcomes[1].Status != pipeline.StatusApplied {
		t.Errorf("second outcome = %s (%v), want applied",
			result.Outcomes[1].Status, result.Outcomes[1].Err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "a.txt")); err != nil {
		t.Errorf("branch file missing after fetch failure of earlier item: %v", err)
	}
}

func TestRunMissingPatchContinues(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.Patches = []refspec.Patch{{Name: "does-not-exist"}}

	p, _ := newPipeline(t, cfg, workDir, newResolver(upstream))
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcomes[0].Status != pipeline.StatusFailed ||
		result.Outcomes[0].Reason != pipeline.ReasonMissingPatch {
		t.Errorf("outcome = %s/%s, want failed/patch file not found",
			result.Outcomes[0].Status, result.Outcomes[0].Reason)
	}
	if !errors.Is(result.Outcomes[0].Err, pipeline.ErrPatchFileNotFound) {
		t.Errorf("outcome error = %v, want ErrPatchFileNotFound", result.Outcomes[0].Err)
	}
}

func TestRunAppliesPatch(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "scratch", true)
	tip := commitFile(t, upstream, "patched.txt", "patched\n", "add patched file")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)

	upstreamRepo, err := git.Open(upstream)
	if err != nil {
		t.Fatalf("failed to open upstream: %v", err)
	}
	if _, err := patchfile.Generate(context.Background(), upstreamRepo, cfg.Dir, tip, "extra"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	cfg.Patches = []refspec.Patch{{Name: "extra"}}

	p, _ := newPipeline(t, cfg, workDir, newResolver(upstream))
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcomes[0].Status != pipeline.StatusApplied {
		t.Fatalf("outcome = %s (%v), want applied", result.Outcomes[0].Status, result.Outcomes[0].Err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "patched.txt")); err != nil {
		t.Errorf("patched file missing: %v", err)
	}
}

func TestRunPinResetsFetchedBranch(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-a", true)
	pinned := commitFile(t, upstream, "a.txt", "a\n", "add a")
	commitFile(t, upstream, "a2.txt", "a2\n", "add a2")

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.Branches = []refspec.Branch{{Owner: "alice", Repo: "helix", Name: "feat-a", Pin: pinned}}

	resolver := newResolver(upstream)
	resolver.CloneURLs["alice/helix"] = upstream

	p, repo := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcomes[0].Status != pipeline.StatusApplied {
		t.Fatalf("outcome = %s (%v), want applied", result.Outcomes[0].Status, result.Outcomes[0].Err)
	}

	// The commit after the pin must not be part of the merge.
	if _, err := os.Stat(filepath.Join(workDir, "a.txt")); err != nil {
		t.Errorf("pinned file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "a2.txt")); err == nil {
		t.Error("file from beyond the pin should not be merged")
	}

	// The fetched branch now sits at the pin, so a rerun skips the network.
	tip, err := repo.ResolveCommit("patchwork/alice/helix/feat-a")
	if err != nil {
		t.Fatalf("ResolveCommit failed: %v", err)
	}
	if tip != pinned {
		t.Errorf("fetched branch tip = %s, want pin %s", tip, pinned)
	}

	before := resolver.CallCount("RepoCloneURL")
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	// One more lookup for the base repository, none for the pinned branch.
	if got := resolver.CallCount("RepoCloneURL"); got != before+1 {
		t.Errorf("RepoCloneURL calls after rerun = %d, want %d", got, before+1)
	}
}

func TestRunPinNotOnBranch(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	checkout(t, upstream, "feat-a", true)
	commitFile(t, upstream, "a.txt", "a\n", "add a")
	// A commit that exists nowhere on feat-a.
	bogus := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.Branches = []refspec.Branch{{Owner: "alice", Repo: "helix", Name: "feat-a", Pin: bogus}}

	resolver := newResolver(upstream)
	resolver.CloneURLs["alice/helix"] = upstream

	p, _ := newPipeline(t, cfg, workDir, resolver)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcomes[0].Status != pipeline.StatusFailed ||
		result.Outcomes[0].Reason != pipeline.ReasonPin {
		t.Errorf("outcome = %s/%s, want failed/pin",
			result.Outcomes[0].Status, result.Outcomes[0].Reason)
	}
	if !errors.Is(result.Outcomes[0].Err, pipeline.ErrPinnedRevisionNotFound) {
		t.Errorf("outcome error = %v, want ErrPinnedRevisionNotFound", result.Outcomes[0].Err)
	}
}

func TestRunBranchNameConflict(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	workDir := initRepo(t)

	// A user branch with the configured name, not created by the tool.
	userTip := commitFile(t, workDir, "user.txt", "mine\n", "user work")
	checkout(t, workDir, "patchwork", true)
	checkout(t, workDir, "master", false)

	cfg := testConfig(t, workDir)
	p, repo := newPipeline(t, cfg, workDir, newResolver(upstream))
	p.SetConfirm(func(string) bool { return false })

	_, err := p.Run(context.Background())
	if !errors.Is(err, pipeline.ErrBranchNameConflict) {
		t.Fatalf("Run error = %v, want ErrBranchNameConflict", err)
	}

	// The user's branch was not moved.
	tip, err := repo.ResolveCommit("patchwork")
	if err != nil {
		t.Fatalf("ResolveCommit failed: %v", err)
	}
	if tip != userTip {
		t.Errorf("user branch moved from %s to %s", userTip, tip)
	}
}

func TestRunRerunPolicies(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	workDir := initRepo(t)
	cfg := testConfig(t, workDir)

	p, _ := newPipeline(t, cfg, workDir, newResolver(upstream))
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// reset: a rerun recreates the branch after confirmation.
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("rerun with reset policy failed: %v", err)
	}

	// keep: a rerun refuses to touch the existing working branch.
	cfg.OnRerun = config.RerunKeep
	_, err := p.Run(context.Background())
	if !errors.Is(err, pipeline.ErrWorkingBranchKept) {
		t.Fatalf("rerun with keep policy error = %v, want ErrWorkingBranchKept", err)
	}

	// reset without confirmation is refused.
	cfg.OnRerun = config.RerunReset
	p.SetConfirm(func(string) bool { return false })
	_, err = p.Run(context.Background())
	if !errors.Is(err, pipeline.ErrConfirmationDeclined) {
		t.Fatalf("unconfirmed reset error = %v, want ErrConfirmationDeclined", err)
	}
}

func TestRunDirtyWorktree(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	workDir := initRepo(t)
	if err := os.WriteFile(filepath.Join(workDir, "file.txt"), []byte("dirty\n"), 0o644); err != nil {
		t.Fatalf("failed to dirty the worktree: %v", err)
	}

	cfg := testConfig(t, workDir)
	p, _ := newPipeline(t, cfg, workDir, newResolver(upstream))
	_, err := p.Run(context.Background())
	if !errors.Is(err, pipeline.ErrDirtyWorktree) {
		t.Fatalf("Run error = %v, want ErrDirtyWorktree", err)
	}
}

func TestRunBaseBranchNotFound(t *testing.T) {
	requireGit(t)

	upstream := initRepo(t)
	workDir := initRepo(t)
	cfg := testConfig(t, workDir)
	cfg.BaseBranch = "no-such-branch"

	p, _ := newPipeline(t, cfg, workDir, newResolver(upstream))
	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded with a missing base branch, want error")
	}
}

func TestSummary(t *testing.T) {
	item := &pipeline.WorkItem{Kind: pipeline.KindPullRequest, PullRequest: refspec.PullRequest{Number: 42}}
	result := &pipeline.RunResult{Outcomes: []pipeline.Outcome{
		{Item: item, Status: pipeline.StatusApplied},
		{Item: item, Status: pipeline.StatusFailed, Reason: pipeline.ReasonFetch, Err: errors.New("boom")},
	}}

	summary := result.Summary()
	for _, want := range []string{"1 applied", "1 failed", "#42", "fetch failed", "boom"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
