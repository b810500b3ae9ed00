package mirror

import (
	"context"
	"fmt"

	"github.com/Useroth/MirrorCollapse/pkg/log"
)

const (
	// MirrorBranchPrefix prefixes every per-PR mirror branch.
	MirrorBranchPrefix = "mirror-"

	// noCommitsBetween is how the hosting service rejects a pull request
	// whose head adds nothing to its base.
	noCommitsBetween = "No commits between"
)

// Outcome describes how a single mirror completed.
type Outcome string

const (
	// OutcomeCreated means a mirror pull request was opened.
	OutcomeCreated Outcome = "created"
	// OutcomeIdentical means origin already had the content; nothing to open.
	OutcomeIdentical Outcome = "identical"
	// OutcomeDryRun means no write was performed.
	OutcomeDryRun Outcome = "dry-run"
)

// MirrorResult describes the mirror of one upstream pull request.
type MirrorResult struct {
	Number        int
	Branch        string
	BranchCreated bool
	Outcome       Outcome
	// PullRequest is the opened mirror; nil unless Outcome is OutcomeCreated.
	PullRequest *PullRequest
}

// MirrorBranchName returns the deterministic mirror branch for number.
func MirrorBranchName(number int) string {
	return fmt.Sprintf("%s%d", MirrorBranchPrefix, number)
}

func headsRef(branch string) string {
	return "heads/" + branch
}

// Executor mirrors one confirmed-missing pull request at a time: it points
// mirror-<number> at the merge commit, opens a pull request into origin's
// default branch and records the number in the ledger.
//
// Every step is safe to repeat. A run interrupted after the branch step
// refreshes the branch on the next run and proceeds.
type Executor struct {
	host     Host
	ledger   *Ledger
	template *PRTemplate
	dryRun   bool
}

// NewExecutor creates an executor.
func NewExecutor(host Host, ledger *Ledger, template *PRTemplate, dryRun bool) *Executor {
	return &Executor{host: host, ledger: ledger, template: template, dryRun: dryRun}
}

// EnsureBranch creates mirror-<number> at sha, or force-updates it to sha
// when it already exists. It reports whether the branch was created.
func (e *Executor) EnsureBranch(ctx context.Context, origin *Repository, number int, sha string) (bool, error) {
	branch := MirrorBranchName(number)
	ref := headsRef(branch)

	existing, err := e.host.GetReference(ctx, origin, ref)
	if err != nil && !IsNotFound(err) {
		return false, fmt.Errorf("failed to look up %s: %w", ref, err)
	}

	if err != nil {
		if e.dryRun {
			log.Info("dry-run: would create mirror branch", "branch", branch, "sha", sha)
			return false, nil
		}
		if err := e.host.CreateReference(ctx, origin, ref, sha); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", ref, err)
		}
		log.Info("created mirror branch", "branch", branch, "sha", sha)
		return true, nil
	}

	if existing.SHA == sha {
		log.Debug("mirror branch already up to date", "branch", branch, "sha", sha)
		return false, nil
	}
	if e.dryRun {
		log.Info("dry-run: would update mirror branch", "branch", branch, "from", existing.SHA, "to", sha)
		return false, nil
	}
	if err := e.host.UpdateReference(ctx, origin, ref, sha, true); err != nil {
		return false, fmt.Errorf("failed to update %s: %w", ref, err)
	}
	log.Info("updated mirror branch", "branch", branch, "from", existing.SHA, "to", sha)
	return false, nil
}

// Mirror mirrors pr from upstream into origin.
//
// A rejection saying there are no commits between the mirror branch and the
// default branch counts as success: the content is already in origin. Any
// other rejection is returned as a *ValidationError and leaves the ledger
// untouched so the next run retries.
func (e *Executor) Mirror(ctx context.Context, origin, upstream *Repository, pr *PullRequest) (*MirrorResult, error) {
	if pr.MergeCommitSHA == "" {
		return nil, &ValidationError{Message: fmt.Sprintf("pull request #%d has no merge commit", pr.Number)}
	}

	branch := MirrorBranchName(pr.Number)
	result := &MirrorResult{Number: pr.Number, Branch: branch}

	created, err := e.EnsureBranch(ctx, origin, pr.Number, pr.MergeCommitSHA)
	if err != nil {
		return nil, err
	}
	result.BranchCreated = created

	title, body := e.template.Render(upstream, pr)

	if e.dryRun {
		log.Info("dry-run: would open mirror pull request", "pr", pr.Number, "title", title, "base", origin.DefaultBranch)
		result.Outcome = OutcomeDryRun
		return result, nil
	}

	opened, err := e.host.CreatePullRequest(ctx, origin, &NewPullRequest{
		Title: title,
		Head:  branch,
		Base:  origin.DefaultBranch,
		Body:  body,
	})
	switch {
	case err == nil:
		result.Outcome = OutcomeCreated
		result.PullRequest = opened
		log.Info("opened mirror pull request", "pr", pr.Number, "mirror", opened.Number, "url", opened.URL)
	case isNoCommitsBetween(err):
		result.Outcome = OutcomeIdentical
		log.Info("origin already has the content, nothing to open", "pr", pr.Number, "branch", branch)
	default:
		return nil, fmt.Errorf("failed to open mirror pull request for #%d: %w", pr.Number, err)
	}

	if _, err := e.ledger.Record(ctx, pr.Number); err != nil {
		return nil, fmt.Errorf("failed to record pull request #%d: %w", pr.Number, err)
	}
	return result, nil
}

func isNoCommitsBetween(err error) bool {
	ve, ok := AsValidation(err)
	return ok && ve.Mentions(noCommitsBetween)
}
