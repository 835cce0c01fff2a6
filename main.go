// Package main provides the entry point for the patchwork CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patchwork-cli/patchwork/internal/logger"
	"github.com/patchwork-cli/patchwork/internal/ui"
	"github.com/patchwork-cli/patchwork/pkg/config"
	"github.com/patchwork-cli/patchwork/pkg/git"
	"github.com/patchwork-cli/patchwork/pkg/github"
	"github.com/patchwork-cli/patchwork/pkg/naming"
	"github.com/patchwork-cli/patchwork/pkg/patchfile"
	"github.com/patchwork-cli/patchwork/pkg/pipeline"
	"github.com/patchwork-cli/patchwork/pkg/refspec"
	"github.com/spf13/cobra"
)

var (
	errRunFailed      = errors.New("run finished with failed items")
	errConfigExists   = errors.New("configuration file already exists")
	errUnknownPRSpec  = errors.New("expected a pull request number")
	errCommitWithSpec = errors.New("--commit and an inline pin cannot both be given")
)

var (
	logLevel  string
	assumeYes bool
	useGHCLI  bool
	timeout   time.Duration

	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "patchwork",
	Short: "Combine pull requests, branches and patches into one local branch",
	Long: `patchwork builds a local branch out of declared sources: pull requests,
branches of other repositories, and patch files. The sources live in
.patchwork/config.toml; every run rebuilds the working branch from them,
so the result is reproducible and nothing is merged by hand.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		log = logger.NewLogger(logLevel)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Run: func(_ *cobra.Command, _ []string) {
		exit(runInit())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch all configured sources and rebuild the working branch",
	Run: func(_ *cobra.Command, _ []string) {
		exit(runRun())
	},
}

var prFetchCmd = &cobra.Command{
	Use:   "pr-fetch <number>",
	Short: "Fetch a single pull request head as a local branch",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		exit(runPRFetch(args[0]))
	},
}

var branchFetchCmd = &cobra.Command{
	Use:   "branch-fetch <owner/repo/branch>",
	Short: "Fetch a branch of another repository as a local branch",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		exit(runBranchFetch(args[0]))
	},
}

var genPatchCmd = &cobra.Command{
	Use:   "gen-patch <commit-or-range>",
	Short: "Write a commit or range as a patch file into the config directory",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		exit(runGenPatch(args[0]))
	},
}

var (
	prFetchRepo     string
	prFetchBranch   string
	prFetchCommit   string
	prFetchCheckout bool

	branchFetchCheckout bool

	genPatchFilename string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info",
		"Set log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false,
		"Assume yes on every confirmation prompt")
	rootCmd.PersistentFlags().BoolVar(&useGHCLI, "gh-cli", false,
		"Look up pull requests through the gh CLI instead of the GitHub API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", pipeline.DefaultTimeout,
		"Bound on each network operation")

	prFetchCmd.Flags().StringVar(&prFetchRepo, "repo", "",
		"Repository hosting the pull request (owner/repo); defaults to the origin remote")
	prFetchCmd.Flags().StringVar(&prFetchBranch, "branch", "",
		"Name for the fetched local branch")
	prFetchCmd.Flags().StringVar(&prFetchCommit, "commit", "",
		"Reset the fetched branch to this commit")
	prFetchCmd.Flags().BoolVar(&prFetchCheckout, "checkout", false,
		"Check out the fetched branch")

	branchFetchCmd.Flags().BoolVar(&branchFetchCheckout, "checkout", false,
		"Check out the fetched branch")

	genPatchCmd.Flags().StringVar(&genPatchFilename, "filename", "",
		"Name of the patch file (defaults to the commit subject)")

	rootCmd.AddCommand(initCmd, runCmd, prFetchCmd, branchFetchCmd, genPatchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func exit(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// confirm returns the prompt function honoring --yes.
func confirm() func(string) bool {
	if assumeYes {
		return ui.Always
	}
	return ui.Confirm
}

// newResolver picks the GitHub lookup backend.
func newResolver() (github.Resolver, error) {
	if useGHCLI {
		return github.NewCLIResolver()
	}
	return github.NewClient(), nil
}

// openRepo opens the repository containing the current directory.
func openRepo() (*git.Repository, error) {
	repo, err := git.Open(".")
	if err != nil {
		return nil, err
	}
	repo.SetLogger(log)
	return repo, nil
}

func runInit() error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	dir := filepath.Join(repo.Root(), config.Root())
	path := filepath.Join(dir, config.FileName)

	if _, err := os.Stat(path); err == nil {
		if !confirm()(fmt.Sprintf("Overwrite %s?", path)) {
			return fmt.Errorf("%w: %s", errConfigExists, path)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(config.Example), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Info("wrote example configuration", "path", path)
	return nil
}

func runRun() error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	cfg, err := config.Load(repo.Root())
	if err != nil {
		return err
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, repo, resolver)
	p.SetLogger(log)
	p.SetConfirm(confirm())
	p.SetTimeout(timeout)

	result, err := p.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Print(result.Summary())
	if result.Failed() {
		return errRunFailed
	}
	return nil
}

func runPRFetch(spec string) error {
	pr, err := refspec.ParsePullRequest(spec)
	if err != nil {
		return fmt.Errorf("%w: %w", errUnknownPRSpec, err)
	}
	if prFetchCommit != "" {
		if pr.Pin != "" {
			return errCommitWithSpec
		}
		pr.Pin = prFetchCommit
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}

	hostRepo := prFetchRepo
	if hostRepo == "" {
		url, err := repo.RemoteURL("origin")
		if err != nil {
			return fmt.Errorf("no --repo given and no origin remote: %w", err)
		}
		hostRepo, err = github.RepoFromURL(url)
		if err != nil {
			return err
		}
	} else {
		// A PR fetched from an explicit repository keeps that repository in
		// its local names.
		pr.Repo = hostRepo
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	head, err := resolver.ResolvePullRequest(ctx, hostRepo, pr.Number)
	cancel()
	if err != nil {
		return err
	}
	log.Info("resolved pull request", "title", head.Title, "url", head.HTMLURL)

	names := naming.ForPullRequest(pr)
	local := prFetchBranch
	if local == "" {
		local = names.LocalBranch
	}

	if err := fetchAndPin(repo, names.Remote, head.CloneURL, head.Branch, local, pr.Pin); err != nil {
		return err
	}

	log.Info("fetched pull request", "branch", local)
	if prFetchCheckout {
		return repo.Checkout(local)
	}
	return nil
}

func runBranchFetch(spec string) error {
	branch, err := refspec.ParseBranch(spec)
	if err != nil {
		return err
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	url, err := resolver.RepoCloneURL(ctx, branch.Owner, branch.Repo)
	cancel()
	if err != nil {
		return err
	}

	names := naming.ForBranch(branch)
	if err := fetchAndPin(repo, names.Remote, url, branch.Name, names.LocalBranch, branch.Pin); err != nil {
		return err
	}

	log.Info("fetched branch", "branch", names.LocalBranch)
	if branchFetchCheckout {
		return repo.Checkout(names.LocalBranch)
	}
	return nil
}

// fetchAndPin fetches upstreamBranch from url into local and resets it to
// pin when one is given.
func fetchAndPin(repo *git.Repository, remote, url, upstreamBranch, local, pin string) error {
	if err := repo.AddRemote(remote, url); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	err := repo.FetchBranch(ctx, remote, upstreamBranch, local)
	cancel()
	if err != nil {
		return err
	}

	if pin == "" {
		return nil
	}
	hash, err := repo.ResolveCommit(pin)
	if err != nil {
		return fmt.Errorf("commit %s not found on the fetched branch: %w", pin, err)
	}
	ok, err := repo.IsAncestor(hash, local)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("commit %s is not on branch %s", pin, local)
	}
	return repo.SetBranch(local, hash)
}

func runGenPatch(revisionRange string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	dir := filepath.Join(repo.Root(), config.Root())
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	path, err := patchfile.Generate(ctx, repo, dir, revisionRange, genPatchFilename)
	cancel()
	if err != nil {
		return err
	}

	log.Info("wrote patch file", "path", path)
	return nil
}
