package mirror

import (
	"context"
	"fmt"

	"github.com/Useroth/MirrorCollapse/pkg/log"
)

// VerifyResult partitions scan candidates.
type VerifyResult struct {
	// Missing still need a mirror.
	Missing []*PullRequest
	// Healed are numbers found present in origin and recorded during the pass.
	Healed []int
}

// Verifier checks scan candidates against origin. A candidate whose merge
// commit is already owned by origin (reachable from its default branch) was mirrored without being recorded;
// the verifier records it and drops it.
type Verifier struct {
	host   Host
	ledger *Ledger
}

// NewVerifier creates a verifier that heals ledger.
func NewVerifier(host Host, ledger *Ledger) *Verifier {
	return &Verifier{host: host, ledger: ledger}
}

// Verify returns the candidates that still need mirroring. Any error other
// than a missing commit aborts the whole pass.
func (v *Verifier) Verify(ctx context.Context, origin *Repository, candidates []*PullRequest) (*VerifyResult, error) {
	result := &VerifyResult{}

	for _, pr := range candidates {
		if pr.MergeCommitSHA == "" {
			log.Warn("pull request has no merge commit, keeping it", "pr", pr.Number)
			result.Missing = append(result.Missing, pr)
			continue
		}

		commit, err := v.host.GetCommit(ctx, origin, pr.MergeCommitSHA)
		if err != nil {
			if IsNotFound(err) {
				result.Missing = append(result.Missing, pr)
				continue
			}
			return nil, fmt.Errorf("failed to verify pull request #%d: %w", pr.Number, err)
		}

		if commit.RepositoryID == 0 || commit.RepositoryID != origin.ID {
			log.Debug("merge commit not owned by origin", "pr", pr.Number, "sha", pr.MergeCommitSHA, "repository_id", commit.RepositoryID)
			result.Missing = append(result.Missing, pr)
			continue
		}

		if _, err := v.ledger.Record(ctx, pr.Number); err != nil {
			return nil, fmt.Errorf("failed to record present pull request #%d: %w", pr.Number, err)
		}
		log.Info("merge commit already in origin, recorded", "pr", pr.Number, "sha", pr.MergeCommitSHA)
		result.Healed = append(result.Healed, pr.Number)
	}

	return result, nil
}
