package mirror

import "fmt"

// Repository is a resolved repository handle. It is created once per run
// and never mutated afterwards.
type Repository struct {
	ID            int64
	Owner         string
	Name          string
	DefaultBranch string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// PullRequest is a read-only snapshot of an upstream pull request.
type PullRequest struct {
	// ID is unique across the hosting service.
	ID int64
	// Number is repository-local and shared with issues.
	Number         int
	Title          string
	Body           string
	MergeCommitSHA string
	Merged         bool
	URL            string
}

// Commit is a commit object as reported by the hosting service.
type Commit struct {
	SHA string
	// RepositoryID identifies the repository whose default branch contains
	// the commit. Zero when the commit is only visible through the fork
	// network.
	RepositoryID int64
}

// Reference is a git reference such as "heads/main".
type Reference struct {
	Ref string
	SHA string
}

// Branch is a named branch and the commit at its tip.
type Branch struct {
	Name string
	SHA  string
}

// FileContent holds decoded file content and the blob SHA needed to update it.
type FileContent struct {
	Content []byte
	SHA     string
}

// NewPullRequest contains the fields needed to open a pull request.
type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}
