// Package report records what a mirroring run did: per-stage counts, the
// actions taken against origin and the per-PR failures. A Result can be
// written as JSON and printed as a progress log.
package report

import "time"

// Action types recorded by a run.
const (
	ActionCreatedMirrorBranch = "created_mirror_branch"
	ActionCreatedLedger       = "created_ledger"
	ActionCreatedBranch       = "created_branch"
	ActionCreatedPR           = "created_pr"
	ActionIdentical           = "identical_content"
	ActionHealed              = "healed_ledger"
	ActionDryRun              = "dry_run"
)

// Action represents a single write performed (or skipped) during a run.
type Action struct {
	// Type is the kind of action, one of the Action* constants.
	Type string `json:"type"`

	// Description provides human-readable details about the action.
	Description string `json:"description"`

	// Metadata contains additional action-specific information.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error represents a per-PR failure that did not abort the run, or the
// structural failure that did.
type Error struct {
	Message string `json:"message"`

	// Stage is the pipeline stage that failed.
	Stage string `json:"stage,omitempty"`

	// Number is the upstream pull request number, when the failure concerns one.
	Number int `json:"number,omitempty"`
}

// Counts are the per-stage totals printed as the run progresses.
type Counts struct {
	Discovered      int `json:"discovered"`
	Merged          int `json:"merged"`
	New             int `json:"new"`
	VerifiedMissing int `json:"verified_missing"`
	Healed          int `json:"healed"`
	Mirrored        int `json:"mirrored"`
	Identical       int `json:"identical"`
	Failed          int `json:"failed"`
}

// Result contains the outcome of a mirroring run.
type Result struct {
	RunID      string    `json:"run_id"`
	Origin     string    `json:"origin"`
	Upstream   string    `json:"upstream"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Counts  Counts   `json:"counts"`
	Actions []Action `json:"actions"`
	Errors  []Error  `json:"errors,omitempty"`

	// Success is false when a structural failure ended the run early.
	Success bool `json:"success"`
}
