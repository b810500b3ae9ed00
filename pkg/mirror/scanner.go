package mirror

import (
	"context"
	"fmt"

	"github.com/Useroth/MirrorCollapse/pkg/log"
)

// DefaultScanWindow is how many pull request numbers the scanner walks back
// from the newest one.
const DefaultScanWindow = 100

// ScanResult is the outcome of one backward scan.
type ScanResult struct {
	// Latest is the highest pull request number seen on upstream.
	Latest int
	// Discovered counts the numbers in the window that resolved to a PR.
	Discovered int
	// Merged counts the discovered PRs that were merged.
	Merged int
	// Missing holds merged PRs absent from the ledger, newest first.
	Missing []*PullRequest
}

// Scanner finds upstream merged pull requests that the ledger does not
// mention yet.
//
// Upstream cannot be filtered by merge state, so the scanner fetches every
// number in a fixed window below the newest pull request. Numbers are shared
// with issues; gaps are expected and skipped.
type Scanner struct {
	host   Host
	window int
}

// NewScanner creates a scanner walking window numbers back. A non-positive
// window selects DefaultScanWindow.
func NewScanner(host Host, window int) *Scanner {
	if window <= 0 {
		window = DefaultScanWindow
	}
	return &Scanner{host: host, window: window}
}

// Scan walks upstream and subtracts recorded from the merged PRs it finds.
func (s *Scanner) Scan(ctx context.Context, upstream *Repository, recorded map[int]struct{}) (*ScanResult, error) {
	latest, err := s.host.LatestPullRequestNumber(ctx, upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest pull request on %s: %w", upstream.FullName(), err)
	}

	result := &ScanResult{Latest: latest}
	if latest <= 0 {
		log.Info("upstream has no pull requests", "upstream", upstream.FullName())
		return result, nil
	}

	lowest := latest - s.window + 1
	if lowest < 1 {
		lowest = 1
	}
	log.Debug("scanning upstream pull requests", "upstream", upstream.FullName(), "from", latest, "to", lowest)

	for number := latest; number >= lowest; number-- {
		pr, err := s.host.GetPullRequest(ctx, upstream, number)
		if err != nil {
			if IsNotFound(err) {
				log.Debug("skipping number without pull request", "number", number)
				continue
			}
			return nil, fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
		}

		result.Discovered++
		if !pr.Merged {
			continue
		}
		result.Merged++

		if _, ok := recorded[pr.Number]; ok {
			continue
		}
		result.Missing = append(result.Missing, pr)
	}

	return result, nil
}
