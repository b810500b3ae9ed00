package mirror

import (
	"bytes"
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/Useroth/MirrorCollapse/pkg/log"
)

const (
	// DefaultLedgerBranch is the branch on origin that holds the ledger.
	DefaultLedgerBranch = "mirror-state"

	// DefaultLedgerPath is the ledger file path on DefaultLedgerBranch.
	DefaultLedgerPath = "mirrored.json"
)

// Ledger is the persisted list of upstream pull request numbers that have
// already been mirrored. It lives as a JSON array in a file on a dedicated
// branch of the origin repository.
//
// Nothing is cached: every read fetches the file again and every write is a
// full read-modify-write. Concurrent writers are not supported.
type Ledger struct {
	host   Host
	repo   *Repository
	branch string
	path   string
	dryRun bool
}

// NewLedger returns a ledger stored at path on branch of repo.
func NewLedger(host Host, repo *Repository, branch, path string) *Ledger {
	if branch == "" {
		branch = DefaultLedgerBranch
	}
	if path == "" {
		path = DefaultLedgerPath
	}
	return &Ledger{host: host, repo: repo, branch: branch, path: path}
}

// DryRun makes the ledger read-only; writes are logged and skipped.
func (l *Ledger) DryRun(enabled bool) *Ledger {
	l.dryRun = enabled
	return l
}

// Branch returns the branch holding the ledger.
func (l *Ledger) Branch() string { return l.branch }

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Ensure creates the ledger file as an empty list if it is absent.
// It reports whether the file was created.
func (l *Ledger) Ensure(ctx context.Context) (bool, error) {
	_, err := l.host.GetFileContent(ctx, l.repo, l.path, l.branch)
	if err == nil {
		return false, nil
	}
	if !IsNotFound(err) {
		return false, fmt.Errorf("failed to read ledger %s@%s: %w", l.path, l.branch, err)
	}

	if l.dryRun {
		log.Info("dry-run: would create ledger", "path", l.path, "branch", l.branch)
		return false, nil
	}

	data, err := encodeLedger(nil)
	if err != nil {
		return false, err
	}
	msg := fmt.Sprintf("Create mirror ledger %s", l.path)
	if err := l.host.CreateFile(ctx, l.repo, l.path, l.branch, data, msg); err != nil {
		return false, fmt.Errorf("failed to create ledger %s@%s: %w", l.path, l.branch, err)
	}
	log.Info("created ledger", "path", l.path, "branch", l.branch)
	return true, nil
}

// Numbers fetches the ledger and returns its entries in stored order.
func (l *Ledger) Numbers(ctx context.Context) ([]int, error) {
	numbers, _, err := l.load(ctx)
	return numbers, err
}

// Set fetches the ledger and returns its entries as a set.
func (l *Ledger) Set(ctx context.Context) (map[int]struct{}, error) {
	numbers, err := l.Numbers(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		set[n] = struct{}{}
	}
	return set, nil
}

// Record appends number to the ledger and writes it back. It reports false
// without writing when number is already recorded.
func (l *Ledger) Record(ctx context.Context, number int) (bool, error) {
	numbers, sha, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range numbers {
		if n == number {
			return false, nil
		}
	}

	if l.dryRun {
		log.Info("dry-run: would record pull request in ledger", "pr", number)
		return false, nil
	}

	data, err := encodeLedger(append(numbers, number))
	if err != nil {
		return false, err
	}
	msg := fmt.Sprintf("Record mirrored pull request #%d", number)
	if err := l.host.UpdateFile(ctx, l.repo, l.path, l.branch, data, sha, msg); err != nil {
		return false, fmt.Errorf("failed to write ledger %s@%s: %w", l.path, l.branch, err)
	}
	log.Debug("recorded pull request in ledger", "pr", number, "entries", len(numbers)+1)
	return true, nil
}

func (l *Ledger) load(ctx context.Context) ([]int, string, error) {
	file, err := l.host.GetFileContent(ctx, l.repo, l.path, l.branch)
	if err != nil {
		// A dry run never creates the ledger, so absence reads as empty.
		if l.dryRun && IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to read ledger %s@%s: %w", l.path, l.branch, err)
	}
	numbers, err := decodeLedger(file.Content)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse ledger %s@%s: %w", l.path, l.branch, err)
	}
	return numbers, file.SHA, nil
}

func encodeLedger(numbers []int) ([]byte, error) {
	if numbers == nil {
		numbers = []int{}
	}
	data, err := json.Marshal(numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}
	return data, nil
}

func decodeLedger(data []byte) ([]int, error) {
	var numbers []int
	if len(bytes.TrimSpace(data)) == 0 {
		return numbers, nil
	}
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, err
	}
	return numbers, nil
}
