package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/Useroth/MirrorCollapse/pkg/log"
)

// Repositories is the resolved origin/upstream pair for one run.
type Repositories struct {
	Origin   *Repository
	Upstream *Repository
}

// ParseRepoRef splits an "owner/name" reference. It fails with a
// *ConfigurationError unless ref has exactly two non-empty segments.
func ParseRepoRef(field, ref string) (owner, name string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", &ConfigurationError{Field: field, Reason: "not set"}
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("invalid repository %q (expected owner/name)", ref),
		}
	}
	return parts[0], parts[1], nil
}

// Resolver resolves repository handles and prepares the mirroring branch.
type Resolver struct {
	host Host
	// dryRun skips branch creation.
	dryRun bool
}

// NewResolver creates a resolver backed by host.
func NewResolver(host Host, dryRun bool) *Resolver {
	return &Resolver{host: host, dryRun: dryRun}
}

// Resolve resolves both "owner/name" references. Malformed references fail
// before any remote call.
func (r *Resolver) Resolve(ctx context.Context, originRef, upstreamRef string) (*Repositories, error) {
	originOwner, originName, err := ParseRepoRef("origin", originRef)
	if err != nil {
		return nil, err
	}
	upstreamOwner, upstreamName, err := ParseRepoRef("upstream", upstreamRef)
	if err != nil {
		return nil, err
	}

	origin, err := r.host.GetRepository(ctx, originOwner, originName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve origin %s: %w", originRef, err)
	}
	upstream, err := r.host.GetRepository(ctx, upstreamOwner, upstreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upstream %s: %w", upstreamRef, err)
	}

	log.Debug("resolved repositories",
		"origin", origin.FullName(), "origin_id", origin.ID, "default_branch", origin.DefaultBranch,
		"upstream", upstream.FullName(), "upstream_id", upstream.ID)

	return &Repositories{Origin: origin, Upstream: upstream}, nil
}

// EnsureMirrorBranch creates branch on origin from the tip of origin's
// default branch when it does not exist yet. It reports whether the branch
// was created.
func (r *Resolver) EnsureMirrorBranch(ctx context.Context, origin *Repository, branch string) (bool, error) {
	_, err := r.host.GetBranch(ctx, origin, branch)
	if err == nil {
		return false, nil
	}
	if !IsNotFound(err) {
		return false, fmt.Errorf("failed to look up branch %s: %w", branch, err)
	}

	tip, err := r.host.GetBranch(ctx, origin, origin.DefaultBranch)
	if err != nil {
		return false, fmt.Errorf("failed to look up default branch %s: %w", origin.DefaultBranch, err)
	}

	if r.dryRun {
		log.Info("dry-run: would create mirroring branch", "branch", branch, "from", origin.DefaultBranch, "sha", tip.SHA)
		return false, nil
	}

	if err := r.host.CreateBranch(ctx, origin, branch, tip.SHA); err != nil {
		return false, fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	log.Info("created mirroring branch", "branch", branch, "from", origin.DefaultBranch, "sha", tip.SHA)
	return true, nil
}

// EnsureLedger creates the ledger file when it does not exist yet.
func (r *Resolver) EnsureLedger(ctx context.Context, ledger *Ledger) (bool, error) {
	return ledger.Ensure(ctx)
}
