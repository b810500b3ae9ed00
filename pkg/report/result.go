package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// NewResult starts a result for a run.
func NewResult(runID, origin, upstream string, dryRun bool) *Result {
	return &Result{
		RunID:     runID,
		Origin:    origin,
		Upstream:  upstream,
		DryRun:    dryRun,
		StartedAt: time.Now(),
		Actions:   []Action{},
		Success:   true,
	}
}

// AddAction appends an action.
func (r *Result) AddAction(a Action) {
	r.Actions = append(r.Actions, a)
}

// AddError records a per-PR failure. The run continues.
func (r *Result) AddError(stage string, number int, err error) {
	r.Errors = append(r.Errors, Error{Message: err.Error(), Stage: stage, Number: number})
	r.Counts.Failed++
}

// Fail records the structural failure that ended the run.
func (r *Result) Fail(stage string, err error) {
	r.Errors = append(r.Errors, Error{Message: err.Error(), Stage: stage})
	r.Success = false
	r.Finish()
}

// Finish stamps the completion time.
func (r *Result) Finish() {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
}

// WriteResult writes the result as indented JSON to path, creating parent
// directories as needed.
func WriteResult(path string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run result: %w", err)
	}
	return nil
}

// NewAction creates an Action.
func NewAction(actionType, description string) Action {
	return Action{
		Type:        actionType,
		Description: description,
		Metadata:    make(map[string]string),
	}
}

// AddMetadata adds metadata to an action.
func (a *Action) AddMetadata(key, value string) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
}
