package mirror

import "context"

// Host is the set of source-control hosting operations the mirroring engine
// consumes. Implementations must return *NotFoundError for absent objects,
// *ValidationError when the service rejects a write and *TransportError for
// every other remote failure.
type Host interface {
	GetRepository(ctx context.Context, owner, name string) (*Repository, error)

	GetBranch(ctx context.Context, repo *Repository, name string) (*Branch, error)
	CreateBranch(ctx context.Context, repo *Repository, branch, fromSHA string) error

	GetFileContent(ctx context.Context, repo *Repository, path, ref string) (*FileContent, error)
	CreateFile(ctx context.Context, repo *Repository, path, branch string, content []byte, message string) error
	UpdateFile(ctx context.Context, repo *Repository, path, branch string, content []byte, previousSHA, message string) error

	// LatestPullRequestNumber returns the highest closed pull request number
	// on repo, or 0 when the repository has none.
	LatestPullRequestNumber(ctx context.Context, repo *Repository) (int, error)
	GetPullRequest(ctx context.Context, repo *Repository, number int) (*PullRequest, error)
	CreatePullRequest(ctx context.Context, repo *Repository, pr *NewPullRequest) (*PullRequest, error)

	// GetCommit fetches sha through repo. Commit.RepositoryID is repo.ID only
	// when repo's default branch contains the commit.
	GetCommit(ctx context.Context, repo *Repository, sha string) (*Commit, error)

	GetReference(ctx context.Context, repo *Repository, ref string) (*Reference, error)
	CreateReference(ctx context.Context, repo *Repository, ref, sha string) error
	UpdateReference(ctx context.Context, repo *Repository, ref, sha string, force bool) error
}
