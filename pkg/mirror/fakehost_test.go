package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// fakeHost is an in-memory Host. Repositories are keyed by "owner/name".
type fakeHost struct {
	repos    map[string]*Repository
	branches map[string]map[string]string // repo -> branch -> sha
	files    map[string]map[string]fakeFile // repo -> branch+":"+path -> file
	prs      map[string]map[int]*PullRequest
	commits  map[string]map[string]string // repo -> sha -> owning repo, "" when none
	opened   []*NewPullRequest

	// createPRErr, when set, is returned by CreatePullRequest for the head
	// branch it names.
	createPRErr map[string]error
	// commitErr, when set, is returned by every GetCommit call.
	commitErr error

	revision  atomic.Int64
	nextPR    int
	refWrites int
	fileWrite int
}

type fakeFile struct {
	content []byte
	sha     string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		repos:       map[string]*Repository{},
		branches:    map[string]map[string]string{},
		files:       map[string]map[string]fakeFile{},
		prs:         map[string]map[int]*PullRequest{},
		commits:     map[string]map[string]string{},
		createPRErr: map[string]error{},
		nextPR:      1000,
	}
}

func (h *fakeHost) addRepo(owner, name, defaultBranch, tip string) *Repository {
	repo := &Repository{ID: int64(len(h.repos) + 1), Owner: owner, Name: name, DefaultBranch: defaultBranch}
	key := repo.FullName()
	h.repos[key] = repo
	h.branches[key] = map[string]string{defaultBranch: tip}
	h.files[key] = map[string]fakeFile{}
	h.prs[key] = map[int]*PullRequest{}
	h.commits[key] = map[string]string{tip: key}
	return repo
}

func (h *fakeHost) addPR(repo *Repository, pr *PullRequest) {
	pr.ID = int64(pr.Number) * 10
	h.prs[repo.FullName()][pr.Number] = pr
}

// addCommit makes sha visible from repo. owner is the repository whose
// default branch contains it; nil means none does.
func (h *fakeHost) addCommit(repo *Repository, sha string, owner *Repository) {
	key := ""
	if owner != nil {
		key = owner.FullName()
	}
	h.commits[repo.FullName()][sha] = key
}

func (h *fakeHost) ledger(repo *Repository, branch, path string) (string, bool) {
	f, ok := h.files[repo.FullName()][branch+":"+path]
	return string(f.content), ok
}

func (h *fakeHost) setLedger(repo *Repository, branch, path, content string) {
	h.files[repo.FullName()][branch+":"+path] = fakeFile{content: []byte(content), sha: h.nextRevision()}
}

func (h *fakeHost) nextRevision() string {
	return fmt.Sprintf("blob-%d", h.revision.Add(1))
}

func notFound(format string, args ...any) error {
	return &NotFoundError{Resource: fmt.Sprintf(format, args...)}
}

func (h *fakeHost) GetRepository(_ context.Context, owner, name string) (*Repository, error) {
	repo, ok := h.repos[owner+"/"+name]
	if !ok {
		return nil, notFound("repository %s/%s", owner, name)
	}
	return repo, nil
}

func (h *fakeHost) GetBranch(_ context.Context, repo *Repository, name string) (*Branch, error) {
	sha, ok := h.branches[repo.FullName()][name]
	if !ok {
		return nil, notFound("branch %s", name)
	}
	return &Branch{Name: name, SHA: sha}, nil
}

func (h *fakeHost) CreateBranch(_ context.Context, repo *Repository, branch, fromSHA string) error {
	if _, ok := h.branches[repo.FullName()][branch]; ok {
		return &ValidationError{Message: "Reference already exists"}
	}
	h.branches[repo.FullName()][branch] = fromSHA
	h.refWrites++
	return nil
}

func (h *fakeHost) GetFileContent(_ context.Context, repo *Repository, path, ref string) (*FileContent, error) {
	if _, ok := h.branches[repo.FullName()][ref]; !ok {
		return nil, notFound("ref %s", ref)
	}
	f, ok := h.files[repo.FullName()][ref+":"+path]
	if !ok {
		return nil, notFound("file %s", path)
	}
	return &FileContent{Content: append([]byte(nil), f.content...), SHA: f.sha}, nil
}

func (h *fakeHost) CreateFile(_ context.Context, repo *Repository, path, branch string, content []byte, _ string) error {
	if _, ok := h.branches[repo.FullName()][branch]; !ok {
		return notFound("branch %s", branch)
	}
	key := branch + ":" + path
	if _, ok := h.files[repo.FullName()][key]; ok {
		return &ValidationError{Message: `"sha" wasn't supplied`}
	}
	h.files[repo.FullName()][key] = fakeFile{content: content, sha: h.nextRevision()}
	h.fileWrite++
	return nil
}

func (h *fakeHost) UpdateFile(_ context.Context, repo *Repository, path, branch string, content []byte, previousSHA, _ string) error {
	key := branch + ":" + path
	f, ok := h.files[repo.FullName()][key]
	if !ok {
		return notFound("file %s", path)
	}
	if f.sha != previousSHA {
		return &ValidationError{Message: fmt.Sprintf("%s does not match %s", path, previousSHA)}
	}
	h.files[repo.FullName()][key] = fakeFile{content: content, sha: h.nextRevision()}
	h.fileWrite++
	return nil
}

func (h *fakeHost) LatestPullRequestNumber(_ context.Context, repo *Repository) (int, error) {
	latest := 0
	for n := range h.prs[repo.FullName()] {
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (h *fakeHost) GetPullRequest(_ context.Context, repo *Repository, number int) (*PullRequest, error) {
	pr, ok := h.prs[repo.FullName()][number]
	if !ok {
		return nil, notFound("pull request #%d", number)
	}
	return pr, nil
}

func (h *fakeHost) CreatePullRequest(_ context.Context, repo *Repository, pr *NewPullRequest) (*PullRequest, error) {
	if err := h.createPRErr[pr.Head]; err != nil {
		return nil, err
	}
	if _, ok := h.branches[repo.FullName()][pr.Head]; !ok {
		return nil, &ValidationError{Message: "Validation Failed", Details: []string{"head invalid"}}
	}
	h.opened = append(h.opened, pr)
	h.nextPR++
	return &PullRequest{Number: h.nextPR, Title: pr.Title, Body: pr.Body, URL: fmt.Sprintf("https://example.test/pull/%d", h.nextPR)}, nil
}

func (h *fakeHost) GetCommit(_ context.Context, repo *Repository, sha string) (*Commit, error) {
	if h.commitErr != nil {
		return nil, h.commitErr
	}
	owner, ok := h.commits[repo.FullName()][sha]
	if !ok {
		return nil, notFound("commit %s", sha)
	}
	commit := &Commit{SHA: sha}
	if r, ok := h.repos[owner]; ok {
		commit.RepositoryID = r.ID
	}
	return commit, nil
}

func (h *fakeHost) GetReference(_ context.Context, repo *Repository, ref string) (*Reference, error) {
	branch := strings.TrimPrefix(ref, "heads/")
	sha, ok := h.branches[repo.FullName()][branch]
	if !ok {
		return nil, notFound("reference %s", ref)
	}
	return &Reference{Ref: ref, SHA: sha}, nil
}

func (h *fakeHost) CreateReference(_ context.Context, repo *Repository, ref, sha string) error {
	branch := strings.TrimPrefix(ref, "heads/")
	if _, ok := h.branches[repo.FullName()][branch]; ok {
		return &ValidationError{Message: "Reference already exists"}
	}
	h.branches[repo.FullName()][branch] = sha
	h.refWrites++
	return nil
}

func (h *fakeHost) UpdateReference(_ context.Context, repo *Repository, ref, sha string, force bool) error {
	branch := strings.TrimPrefix(ref, "heads/")
	if _, ok := h.branches[repo.FullName()][branch]; !ok {
		return notFound("reference %s", ref)
	}
	if !force {
		return errors.New("fake host only supports forced updates")
	}
	h.branches[repo.FullName()][branch] = sha
	h.refWrites++
	return nil
}

var _ Host = (*fakeHost)(nil)
