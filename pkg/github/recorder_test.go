package github

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// vcrModeEnv switches fixture tests from replaying cassettes to recording
// live traffic:
//
//	MIRRORCOLLAPSE_VCR_MODE=record GITHUB_TOKEN=your_token go test ./pkg/github/ -run VCR
const vcrModeEnv = "MIRRORCOLLAPSE_VCR_MODE"

// fixtureClient returns a Client whose traffic is served from
// testdata/fixtures/<name>.yaml. The test is skipped when the cassette has
// not been recorded yet.
func fixtureClient(t *testing.T, name string) *Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping fixture test in short mode")
	}

	recording := os.Getenv(vcrModeEnv) == "record"
	mode := recorder.ModeReplaying
	token := "test-token"
	if recording {
		mode = recorder.ModeRecording
		token = os.Getenv(TokenEnv)
		if token == "" {
			t.Fatalf("%s must be set when recording fixtures", TokenEnv)
		}
	}

	// go-vcr adds the ".yaml" extension
	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", name), mode, nil)
	if err != nil {
		if errors.Is(err, cassette.ErrCassetteNotFound) {
			t.Skipf("fixture %s not recorded", name)
		}
		t.Fatalf("failed to create recorder: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("failed to stop recorder: %v", err)
		}
	})

	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})
	r.AddSaveFilter(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		for key := range i.Response.Headers {
			if strings.HasPrefix(key, "X-Ratelimit") {
				delete(i.Response.Headers, key)
			}
		}
		return nil
	})

	return NewClient(token, WithHTTPClient(&http.Client{Transport: r}))
}
