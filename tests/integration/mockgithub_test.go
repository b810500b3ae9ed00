package integration

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-github/v68/github"
)

type mockFile struct {
	content []byte
	sha     string
}

type mockRepo struct {
	owner, name   string
	defaultBranch string
	refs          map[string]string // "heads/main" -> sha
	files         map[string]mockFile
	prs           map[int]*github.PullRequest
	commits       map[string]bool
}

// mockGitHub is a stateful GitHub API fake served over HTTP so the built
// binary can run a full pass against it.
type mockGitHub struct {
	mu       sync.Mutex
	server   *httptest.Server
	repos    map[string]*mockRepo
	revision int
}

func newMockGitHub() *mockGitHub {
	m := &mockGitHub{repos: map[string]*mockRepo{}}

	m.addRepo("acme", "widgets", "base000")
	upstream := m.addRepo("oss", "widgets", "up000")

	upstream.prs[41] = &github.PullRequest{Number: github.Ptr(41), Title: github.Ptr("Closed without merge"), Merged: github.Ptr(false)}
	upstream.prs[42] = &github.PullRequest{
		Number:         github.Ptr(42),
		Title:          github.Ptr("Speed up parser"),
		Body:           github.Ptr("Details."),
		Merged:         github.Ptr(true),
		MergeCommitSHA: github.Ptr("abc123"),
	}
	upstream.prs[43] = &github.PullRequest{Number: github.Ptr(43), Title: github.Ptr("Work in progress"), State: github.Ptr("open")}

	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleRequest)
	m.server = httptest.NewServer(mux)
	return m
}

func (m *mockGitHub) URL() string { return m.server.URL }

func (m *mockGitHub) Close() { m.server.Close() }

func (m *mockGitHub) addRepo(owner, name, tip string) *mockRepo {
	r := &mockRepo{
		owner:         owner,
		name:          name,
		defaultBranch: "main",
		refs:          map[string]string{"heads/main": tip},
		files:         map[string]mockFile{},
		prs:           map[int]*github.PullRequest{},
		commits:       map[string]bool{tip: true},
	}
	m.repos[owner+"/"+name] = r
	return r
}

func (m *mockGitHub) handleRequest(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/repos/"), "/", 3)
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	repo, ok := m.repos[parts[0]+"/"+parts[1]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	rest := ""
	if len(parts) == 3 {
		rest = parts[2]
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, &github.Repository{
			ID:            github.Ptr(int64(len(repo.name))),
			Name:          github.Ptr(repo.name),
			Owner:         &github.User{Login: github.Ptr(repo.owner)},
			DefaultBranch: github.Ptr(repo.defaultBranch),
		})
	case rest == "pulls" && r.Method == http.MethodGet:
		m.listPulls(w, r, repo)
	case rest == "pulls" && r.Method == http.MethodPost:
		m.createPull(w, r, repo)
	case strings.HasPrefix(rest, "pulls/") && r.Method == http.MethodGet:
		n, _ := strconv.Atoi(strings.TrimPrefix(rest, "pulls/"))
		pr, ok := repo.prs[n]
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, pr)
	case strings.HasPrefix(rest, "commits/") && r.Method == http.MethodGet:
		sha := strings.TrimPrefix(rest, "commits/")
		if !repo.commits[sha] {
			writeError(w, http.StatusUnprocessableEntity, "No commit found for SHA: "+sha)
			return
		}
		htmlURL := fmt.Sprintf("https://github.com/%s/%s/commit/%s", repo.owner, repo.name, sha)
		writeJSON(w, http.StatusOK, &github.RepositoryCommit{SHA: github.Ptr(sha), HTMLURL: github.Ptr(htmlURL)})
	case strings.HasPrefix(rest, "compare/") && r.Method == http.MethodGet:
		base, head, _ := strings.Cut(strings.TrimPrefix(rest, "compare/"), "...")
		tip, ok := repo.refs["heads/"+base]
		if !ok || !repo.commits[head] {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		status := "ahead"
		if tip == head {
			status = "identical"
		}
		writeJSON(w, http.StatusOK, &github.CommitsComparison{Status: github.Ptr(status)})
	case strings.HasPrefix(rest, "branches/") && r.Method == http.MethodGet:
		name := strings.TrimPrefix(rest, "branches/")
		sha, ok := repo.refs["heads/"+name]
		if !ok {
			writeError(w, http.StatusNotFound, "Branch not found")
			return
		}
		writeJSON(w, http.StatusOK, &github.Branch{Name: github.Ptr(name), Commit: &github.RepositoryCommit{SHA: github.Ptr(sha)}})
	case strings.HasPrefix(rest, "git/ref/") && r.Method == http.MethodGet:
		ref := strings.TrimPrefix(rest, "git/ref/")
		sha, ok := repo.refs[ref]
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, &github.Reference{Ref: github.Ptr("refs/" + ref), Object: &github.GitObject{SHA: github.Ptr(sha)}})
	case rest == "git/refs" && r.Method == http.MethodPost:
		var payload struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		ref := strings.TrimPrefix(payload.Ref, "refs/")
		if _, ok := repo.refs[ref]; ok {
			writeError(w, http.StatusUnprocessableEntity, "Reference already exists")
			return
		}
		repo.refs[ref] = payload.SHA
		repo.commits[payload.SHA] = true
		writeJSON(w, http.StatusCreated, &github.Reference{Ref: github.Ptr(payload.Ref), Object: &github.GitObject{SHA: github.Ptr(payload.SHA)}})
	case strings.HasPrefix(rest, "git/refs/") && r.Method == http.MethodPatch:
		ref := strings.TrimPrefix(rest, "git/refs/")
		var payload struct {
			SHA string `json:"sha"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		repo.refs[ref] = payload.SHA
		writeJSON(w, http.StatusOK, &github.Reference{Ref: github.Ptr("refs/" + ref), Object: &github.GitObject{SHA: github.Ptr(payload.SHA)}})
	case strings.HasPrefix(rest, "contents/") && r.Method == http.MethodGet:
		path := strings.TrimPrefix(rest, "contents/")
		f, ok := repo.files[r.URL.Query().Get("ref")+":"+path]
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, &github.RepositoryContent{
			Type:     github.Ptr("file"),
			Encoding: github.Ptr("base64"),
			SHA:      github.Ptr(f.sha),
			Content:  github.Ptr(base64.StdEncoding.EncodeToString(f.content)),
		})
	case strings.HasPrefix(rest, "contents/") && r.Method == http.MethodPut:
		m.putContents(w, r, repo, strings.TrimPrefix(rest, "contents/"))
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (m *mockGitHub) listPulls(w http.ResponseWriter, r *http.Request, repo *mockRepo) {
	state := r.URL.Query().Get("state")
	numbers := make([]int, 0, len(repo.prs))
	for n, pr := range repo.prs {
		prState := pr.GetState()
		if prState == "" {
			prState = "closed"
		}
		if state != "all" && state != "" && state != prState {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(numbers)))
	if perPage, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && perPage < len(numbers) {
		numbers = numbers[:perPage]
	}

	out := make([]*github.PullRequest, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, repo.prs[n])
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *mockGitHub) createPull(w http.ResponseWriter, r *http.Request, repo *mockRepo) {
	var payload github.NewPullRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	head := payload.GetHead()
	if _, ok := repo.refs["heads/"+head]; !ok {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}

	number := 100 + len(repo.prs)
	pr := &github.PullRequest{
		Number:  github.Ptr(number),
		Title:   payload.Title,
		Body:    payload.Body,
		HTMLURL: github.Ptr(fmt.Sprintf("https://github.com/%s/%s/pull/%d", repo.owner, repo.name, number)),
	}
	repo.prs[number] = pr
	writeJSON(w, http.StatusCreated, pr)
}

func (m *mockGitHub) putContents(w http.ResponseWriter, r *http.Request, repo *mockRepo, path string) {
	var payload struct {
		Content []byte `json:"content"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := repo.refs["heads/"+payload.Branch]; !ok {
		writeError(w, http.StatusNotFound, "Branch not found")
		return
	}

	key := payload.Branch + ":" + path
	existing, exists := repo.files[key]
	if exists && payload.SHA != existing.sha {
		writeError(w, http.StatusConflict, path+" does not match "+payload.SHA)
		return
	}

	m.revision++
	repo.files[key] = mockFile{content: payload.Content, sha: fmt.Sprintf("blob-%d", m.revision)}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"message": message})
}
