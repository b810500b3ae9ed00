package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"

	"github.com/Useroth/MirrorCollapse/pkg/mirror"
)

const (
	// maxBranchRedirects is how many renames GetBranch follows.
	maxBranchRedirects = 1

	noCommitFound = "No commit found"

	// Comparison statuses of base...head where head is already in base.
	compareIdentical = "identical"
	compareBehind    = "behind"
)

var _ mirror.Host = (*Client)(nil)

// GetRepository fetches a repository by owner and name.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*mirror.Repository, error) {
	repo, _, err := c.GitHubClient().Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, translateError("get", "repository "+owner+"/"+name, err)
	}
	return convertFromGitHubRepository(repo, owner, name), nil
}

// GetBranch fetches a branch and the commit at its tip.
func (c *Client) GetBranch(ctx context.Context, repo *mirror.Repository, name string) (*mirror.Branch, error) {
	branch, _, err := c.GitHubClient().Repositories.GetBranch(ctx, repo.Owner, repo.Name, name, maxBranchRedirects)
	if err != nil {
		return nil, translateError("get", fmt.Sprintf("branch %s in %s", name, repo.FullName()), err)
	}
	return &mirror.Branch{Name: branch.GetName(), SHA: branch.GetCommit().GetSHA()}, nil
}

// CreateBranch creates branch pointing at fromSHA.
func (c *Client) CreateBranch(ctx context.Context, repo *mirror.Repository, branch, fromSHA string) error {
	return c.CreateReference(ctx, repo, "heads/"+branch, fromSHA)
}

// GetFileContent fetches and decodes a file at ref.
func (c *Client) GetFileContent(ctx context.Context, repo *mirror.Repository, path, ref string) (*mirror.FileContent, error) {
	resource := fmt.Sprintf("file %s@%s in %s", path, ref, repo.FullName())

	file, _, _, err := c.GitHubClient().Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, translateError("get", resource, err)
	}
	if file == nil {
		return nil, &mirror.ValidationError{Message: resource + " is a directory"}
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", resource, err)
	}
	return &mirror.FileContent{Content: []byte(content), SHA: file.GetSHA()}, nil
}

// CreateFile commits a new file to branch.
func (c *Client) CreateFile(ctx context.Context, repo *mirror.Repository, path, branch string, content []byte, message string) error {
	_, _, err := c.GitHubClient().Repositories.CreateFile(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	})
	if err != nil {
		return translateError("create", fmt.Sprintf("file %s@%s in %s", path, branch, repo.FullName()), err)
	}
	return nil
}

// UpdateFile commits new content for an existing file. previousSHA is the
// blob SHA the update replaces.
func (c *Client) UpdateFile(ctx context.Context, repo *mirror.Repository, path, branch string, content []byte, previousSHA, message string) error {
	_, _, err := c.GitHubClient().Repositories.UpdateFile(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		SHA:     github.Ptr(previousSHA),
		Branch:  github.Ptr(branch),
	})
	if err != nil {
		return translateError("update", fmt.Sprintf("file %s@%s in %s", path, branch, repo.FullName()), err)
	}
	return nil
}

// LatestPullRequestNumber returns the number of the most recently created
// closed pull request, or 0 when the repository has none. Open pull requests
// are ignored so they cannot push the scan window above every merged one.
func (c *Client) LatestPullRequestNumber(ctx context.Context, repo *mirror.Repository) (int, error) {
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 1},
	}

	prs, _, err := c.GitHubClient().PullRequests.List(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return 0, translateError("list", "pull requests in "+repo.FullName(), err)
	}
	if len(prs) == 0 {
		return 0, nil
	}
	return prs[0].GetNumber(), nil
}

// GetPullRequest fetches a pull request by number. Numbers that belong to
// issues report a not-found error.
func (c *Client) GetPullRequest(ctx context.Context, repo *mirror.Repository, number int) (*mirror.PullRequest, error) {
	pr, _, err := c.GitHubClient().PullRequests.Get(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateError("get", fmt.Sprintf("pull request #%d in %s", number, repo.FullName()), err)
	}
	return convertFromGitHubPR(pr), nil
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, repo *mirror.Repository, newPR *mirror.NewPullRequest) (*mirror.PullRequest, error) {
	pr, _, err := c.GitHubClient().PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.Ptr(newPR.Title),
		Head:  github.Ptr(newPR.Head),
		Base:  github.Ptr(newPR.Base),
		Body:  github.Ptr(newPR.Body),
	})
	if err != nil {
		return nil, translateError("create", fmt.Sprintf("pull request %s -> %s in %s", newPR.Head, newPR.Base, repo.FullName()), err)
	}
	return convertFromGitHubPR(pr), nil
}

// GetCommit fetches a commit as seen from repo.
//
// GitHub serves any commit of the fork network under every repository in it,
// so a successful fetch says nothing about ownership. The commit is reported
// as repo's only when repo's default branch reaches it.
func (c *Client) GetCommit(ctx context.Context, repo *mirror.Repository, sha string) (*mirror.Commit, error) {
	resource := fmt.Sprintf("commit %s in %s", sha, repo.FullName())

	commit, _, err := c.GitHubClient().Repositories.GetCommit(ctx, repo.Owner, repo.Name, sha, nil)
	if err != nil {
		err = translateError("get", resource, err)
		// Unknown SHAs are rejected with 422 rather than 404.
		if ve, ok := mirror.AsValidation(err); ok && ve.Mentions(noCommitFound) {
			return nil, &mirror.NotFoundError{Resource: resource, Err: err}
		}
		return nil, err
	}

	result := &mirror.Commit{SHA: commit.GetSHA()}
	if repo.DefaultBranch == "" {
		return result, nil
	}

	reachable, err := c.reachableFrom(ctx, repo, repo.DefaultBranch, sha)
	if err != nil {
		return nil, err
	}
	if reachable {
		result.RepositoryID = repo.ID
	}
	return result, nil
}

// reachableFrom reports whether sha is an ancestor of (or equal to) the tip
// of branch.
func (c *Client) reachableFrom(ctx context.Context, repo *mirror.Repository, branch, sha string) (bool, error) {
	cmp, _, err := c.GitHubClient().Repositories.CompareCommits(ctx, repo.Owner, repo.Name, branch, sha, &github.ListOptions{PerPage: 1})
	if err != nil {
		err = translateError("compare", fmt.Sprintf("%s...%s in %s", branch, sha, repo.FullName()), err)
		if mirror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	switch cmp.GetStatus() {
	case compareIdentical, compareBehind:
		return true, nil
	default:
		return false, nil
	}
}

// GetReference fetches a reference such as "heads/mirror-42".
func (c *Client) GetReference(ctx context.Context, repo *mirror.Repository, ref string) (*mirror.Reference, error) {
	r, _, err := c.GitHubClient().Git.GetRef(ctx, repo.Owner, repo.Name, ref)
	if err != nil {
		return nil, translateError("get", fmt.Sprintf("reference %s in %s", ref, repo.FullName()), err)
	}
	return &mirror.Reference{
		Ref: strings.TrimPrefix(r.GetRef(), "refs/"),
		SHA: r.GetObject().GetSHA(),
	}, nil
}

// CreateReference creates ref pointing at sha.
func (c *Client) CreateReference(ctx context.Context, repo *mirror.Repository, ref, sha string) error {
	_, _, err := c.GitHubClient().Git.CreateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.Ptr(qualifiedRef(ref)),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	})
	if err != nil {
		return translateError("create", fmt.Sprintf("reference %s in %s", ref, repo.FullName()), err)
	}
	return nil
}

// UpdateReference moves ref to sha. A forced update may discard commits.
func (c *Client) UpdateReference(ctx context.Context, repo *mirror.Repository, ref, sha string, force bool) error {
	_, _, err := c.GitHubClient().Git.UpdateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.Ptr(qualifiedRef(ref)),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	}, force)
	if err != nil {
		return translateError("update", fmt.Sprintf("reference %s in %s", ref, repo.FullName()), err)
	}
	return nil
}

func qualifiedRef(ref string) string {
	return "refs/" + strings.TrimPrefix(ref, "refs/")
}

// convertFromGitHubRepository converts a github.Repository to a mirror handle.
// owner and name are used when the response omits them.
func convertFromGitHubRepository(repo *github.Repository, owner, name string) *mirror.Repository {
	r := &mirror.Repository{
		ID:            repo.GetID(),
		Owner:         owner,
		Name:          name,
		DefaultBranch: repo.GetDefaultBranch(),
	}
	if login := repo.GetOwner().GetLogin(); login != "" {
		r.Owner = login
	}
	if n := repo.GetName(); n != "" {
		r.Name = n
	}
	return r
}

// convertFromGitHubPR converts a github.PullRequest to our PullRequest type
func convertFromGitHubPR(pr *github.PullRequest) *mirror.PullRequest {
	return &mirror.PullRequest{
		ID:             pr.GetID(),
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		Merged:         pr.GetMerged(),
		URL:            pr.GetHTMLURL(),
	}
}
