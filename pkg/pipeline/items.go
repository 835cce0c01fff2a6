package pipeline

import (
	"fmt"
	"strings"

	"github.com/patchwork-cli/patchwork/pkg/refspec"
)

// Kind is the type of source a work item integrates.
type Kind int

const (
	// KindPullRequest merges the head branch of a pull request.
	KindPullRequest Kind = iota
	// KindBranch merges a branch of another repository.
	KindBranch
	// KindPatch applies a local patch file.
	KindPatch
)

// WorkItem is one reference scheduled for integration, together with the
// local names assigned to it.
type WorkItem struct {
	Kind Kind

	PullRequest refspec.PullRequest
	Branch      refspec.Branch
	Patch       refspec.Patch

	// Remote and LocalBranch are the names assigned by the naming scheme.
	// Patches use neither.
	Remote      string
	LocalBranch string

	// Index is the item's position in the overall integration order.
	Index int
}

// Describe renders the item the way the user wrote it in the configuration.
func (w *WorkItem) Describe() string {
	switch w.Kind {
	case KindPullRequest:
		if w.PullRequest.Repo != "" {
			return fmt.Sprintf("%s (%s)", w.PullRequest, w.PullRequest.Repo)
		}
		return w.PullRequest.String()
	case KindBranch:
		return w.Branch.String()
	case KindPatch:
		return w.Patch.Name + ".patch"
	}
	return "unknown"
}

// Pin returns the item's pinned revision, empty when unpinned.
func (w *WorkItem) Pin() string {
	switch w.Kind {
	case KindPullRequest:
		return w.PullRequest.Pin
	case KindBranch:
		return w.Branch.Pin
	}
	return ""
}

// Status is the final state of one work item.
type Status int

const (
	// StatusApplied means the item's changes are in the working branch.
	StatusApplied Status = iota
	// StatusSkipped means the item was never attempted because an earlier
	// item failed to integrate.
	StatusSkipped
	// StatusFailed means fetching or integrating the item failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Reason explains a skipped or failed outcome.
type Reason string

const (
	// ReasonNone is the reason of an applied item.
	ReasonNone Reason = ""
	// ReasonFetch covers network errors, missing remote refs and unknown
	// pull requests.
	ReasonFetch Reason = "fetch failed"
	// ReasonPin means the pinned revision is not on the fetched branch.
	ReasonPin Reason = "pinned revision not found"
	// ReasonMissingPatch means the configured patch file does not exist.
	ReasonMissingPatch Reason = "patch file not found"
	// ReasonConflict means the item did not integrate cleanly.
	ReasonConflict Reason = "conflict"
	// ReasonPreviousFailure marks items abandoned after an integration
	// failure earlier in the run.
	ReasonPreviousFailure Reason = "earlier failure aborted the run"
)

// Outcome is the recorded result of one work item.
type Outcome struct {
	Item   *WorkItem
	Status Status
	Reason Reason
	// Err carries the underlying failure for failed items.
	Err error
}

// RunResult is the ordered list of outcomes of one run.
type RunResult struct {
	Outcomes []Outcome
}

// Failed reports whether any item failed.
func (r *RunResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Count returns how many items ended in the given status.
func (r *RunResult) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Summary renders a one-line-per-item report of the run.
func (r *RunResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d applied, %d failed, %d skipped\n",
		r.Count(StatusApplied), r.Count(StatusFailed), r.Count(StatusSkipped))
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "  %-7s %s", o.Status, o.Item.Describe())
		if o.Reason != ReasonNone {
			fmt.Fprintf(&b, " (%s", o.Reason)
			if o.Err != nil {
				fmt.Fprintf(&b, ": %v", o.Err)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}
