package mirror

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Useroth/MirrorCollapse/pkg/log"
	"github.com/Useroth/MirrorCollapse/pkg/report"
)

// Pipeline stage names used in progress output and run results.
const (
	StageResolve = "resolve"
	StagePrepare = "prepare"
	StageScan    = "scan"
	StageVerify  = "verify"
	StageMirror  = "mirror"
)

// Options configures a pipeline run.
type Options struct {
	// Origin and Upstream are "owner/name" references.
	Origin   string
	Upstream string

	TitlePrefix   string
	BodyPrefix    string
	TitleTemplate string
	BodyTemplate  string

	// LedgerBranch and LedgerPath locate the ledger on origin.
	LedgerBranch string
	LedgerPath   string

	// ScanWindow is how many numbers to walk back from the newest PR.
	ScanWindow int

	// DryRun performs every read and no write.
	DryRun bool

	// RunID tags the run in logs and results. Generated when empty.
	RunID string
}

// Pipeline runs one reconciliation pass: resolve, prepare the ledger, scan,
// verify, mirror. All remote operations are issued sequentially.
type Pipeline struct {
	host     Host
	opts     Options
	template *PRTemplate
	printer  *report.Printer
}

// NewPipeline validates opts and returns a pipeline. printer may be nil.
func NewPipeline(host Host, opts Options, printer *report.Printer) (*Pipeline, error) {
	if host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if _, _, err := ParseRepoRef("origin", opts.Origin); err != nil {
		return nil, err
	}
	if _, _, err := ParseRepoRef("upstream", opts.Upstream); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	tmpl, err := NewPRTemplate(opts.TitleTemplate, opts.BodyTemplate, opts.TitlePrefix, opts.BodyPrefix)
	if err != nil {
		return nil, err
	}
	if printer == nil {
		printer = report.Discard()
	}

	return &Pipeline{host: host, opts: opts, template: tmpl, printer: printer}, nil
}

// Run executes the pass. The returned result is never nil. The error is the
// structural failure that ended the run early; per-PR failures are only
// recorded in the result.
func (p *Pipeline) Run(ctx context.Context) (*report.Result, error) {
	result := report.NewResult(p.opts.RunID, p.opts.Origin, p.opts.Upstream, p.opts.DryRun)

	fail := func(stage string, err error) (*report.Result, error) {
		log.Error("run aborted", "stage", stage, "error", err)
		result.Fail(stage, err)
		p.printer.Failure(stage, err)
		return result, err
	}

	resolver := NewResolver(p.host, p.opts.DryRun)
	repos, err := resolver.Resolve(ctx, p.opts.Origin, p.opts.Upstream)
	if err != nil {
		return fail(StageResolve, err)
	}
	origin, upstream := repos.Origin, repos.Upstream
	p.printer.Note(StageResolve, "origin=%s upstream=%s base=%s", origin.FullName(), upstream.FullName(), origin.DefaultBranch)

	ledger := NewLedger(p.host, origin, p.opts.LedgerBranch, p.opts.LedgerPath).DryRun(p.opts.DryRun)

	created, err := resolver.EnsureMirrorBranch(ctx, origin, ledger.Branch())
	if err != nil {
		return fail(StagePrepare, err)
	}
	if created {
		a := report.NewAction(report.ActionCreatedMirrorBranch, fmt.Sprintf("Created branch %s", ledger.Branch()))
		a.AddMetadata("branch", ledger.Branch())
		result.AddAction(a)
	}

	created, err = resolver.EnsureLedger(ctx, ledger)
	if err != nil {
		return fail(StagePrepare, err)
	}
	if created {
		a := report.NewAction(report.ActionCreatedLedger, fmt.Sprintf("Created ledger %s", ledger.Path()))
		a.AddMetadata("path", ledger.Path())
		result.AddAction(a)
	}

	recorded, err := ledger.Set(ctx)
	if err != nil {
		return fail(StagePrepare, err)
	}

	scan, err := NewScanner(p.host, p.opts.ScanWindow).Scan(ctx, upstream, recorded)
	if err != nil {
		return fail(StageScan, err)
	}
	result.Counts.Discovered = scan.Discovered
	result.Counts.Merged = scan.Merged
	result.Counts.New = len(scan.Missing)
	p.printer.Stage(StageScan,
		report.Count{Label: "discovered", Value: scan.Discovered},
		report.Count{Label: "merged", Value: scan.Merged},
		report.Count{Label: "new", Value: len(scan.Missing)},
	)

	verified, err := NewVerifier(p.host, ledger).Verify(ctx, origin, scan.Missing)
	if err != nil {
		return fail(StageVerify, err)
	}
	result.Counts.VerifiedMissing = len(verified.Missing)
	result.Counts.Healed = len(verified.Healed)
	for _, n := range verified.Healed {
		a := report.NewAction(report.ActionHealed, fmt.Sprintf("Recorded #%d already present in origin", n))
		a.AddMetadata("pr_number", fmt.Sprint(n))
		result.AddAction(a)
	}
	p.printer.Stage(StageVerify,
		report.Count{Label: "verified-missing", Value: len(verified.Missing)},
		report.Count{Label: "healed", Value: len(verified.Healed)},
	)

	executor := NewExecutor(p.host, ledger, p.template, p.opts.DryRun)
	for _, pr := range verified.Missing {
		if err := ctx.Err(); err != nil {
			return fail(StageMirror, err)
		}

		mirrored, err := executor.Mirror(ctx, origin, upstream, pr)
		if err != nil {
			if IsValidation(err) {
				log.Warn("mirror rejected, will retry next run", "pr", pr.Number, "error", err)
				result.AddError(StageMirror, pr.Number, err)
				p.printer.Mirrored(pr.Number, "failed", err.Error())
				continue
			}
			return fail(StageMirror, err)
		}
		p.recordMirror(result, mirrored)
	}

	result.Finish()
	p.printer.Summary(result)
	return result, nil
}

func (p *Pipeline) recordMirror(result *report.Result, m *MirrorResult) {
	number := fmt.Sprint(m.Number)

	if m.BranchCreated {
		a := report.NewAction(report.ActionCreatedBranch, fmt.Sprintf("Created branch %s", m.Branch))
		a.AddMetadata("branch", m.Branch)
		a.AddMetadata("pr_number", number)
		result.AddAction(a)
	}

	switch m.Outcome {
	case OutcomeCreated:
		result.Counts.Mirrored++
		a := report.NewAction(report.ActionCreatedPR, fmt.Sprintf("Created PR #%d mirroring #%d", m.PullRequest.Number, m.Number))
		a.AddMetadata("pr_number", number)
		a.AddMetadata("mirror_number", fmt.Sprint(m.PullRequest.Number))
		a.AddMetadata("mirror_url", m.PullRequest.URL)
		result.AddAction(a)
		p.printer.Mirrored(m.Number, string(m.Outcome), m.PullRequest.URL)
	case OutcomeIdentical:
		result.Counts.Identical++
		a := report.NewAction(report.ActionIdentical, fmt.Sprintf("Origin already contains #%d", m.Number))
		a.AddMetadata("pr_number", number)
		result.AddAction(a)
		p.printer.Mirrored(m.Number, string(m.Outcome), m.Branch)
	case OutcomeDryRun:
		a := report.NewAction(report.ActionDryRun, fmt.Sprintf("Would mirror #%d on %s", m.Number, m.Branch))
		a.AddMetadata("pr_number", number)
		result.AddAction(a)
		p.printer.Mirrored(m.Number, string(m.Outcome), m.Branch)
	}
}
