package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nixpkgs-broken/hydrawatch/internal/config"
)

const jobBody = `{"id":%d,"jobset":"trunk","nixname":"x","system":"x","buildstatus":%d,"jobsetevals":[900],"timestamp":1,"job":%q,"project":"nixpkgs","finished":1}`

func jobsetServer(t *testing.T) *httptest.Server {
	t.Helper()
	jobs := map[string]struct {
		id     int
		status uint16
		job    string
	}{
		"/build/1": {1, 1, "zsh.x86_64-linux"},
		"/build/2": {2, 1, "zsh.aarch64-linux"},
		"/build/3": {3, 1, "stdenvBootstrapTools.x86_64-darwin.test"},
		"/build/4": {4, 2, "hello.x86_64-linux"},
		"/build/5": {5, 1, "jq.aarch64-darwin"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobset/nixpkgs/trunk/evals":
			fmt.Fprint(w, `{"evals":[{"id":900},{"id":899}]}`)
		case "/eval/900":
			fmt.Fprint(w, `{"id":900,"builds":[1,2,3,4,5,6]}`)
		default:
			j, ok := jobs[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintf(w, jobBody, j.id, j.status, j.job)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func brokenConfig(baseURL string) *config.Config {
	cfg := testConfig(baseURL)
	cfg.Jobset = "nixpkgs/trunk"
	cfg.JobsetProject = "nixpkgs"
	cfg.JobsetName = "trunk"
	return cfg
}

func TestBreakerListsFailingJobs(t *testing.T) {
	srv := jobsetServer(t)
	b, err := NewBreaker(brokenConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("NewBreaker: %v", err)
	}

	var buf bytes.Buffer
	if err := b.Run(context.Background(), &buf); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "jq.aarch64-darwin\nzsh.aarch64-linux\nzsh.x86_64-linux\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

type fileEval struct {
	files map[string]string
}

func (f fileEval) AttrFile(_ context.Context, attr string) (string, error) {
	path, ok := f.files[attr]
	if !ok {
		return "", fmt.Errorf("no file for %s", attr)
	}
	return path, nil
}

func (f fileEval) Broken(_ context.Context, attr, _ string) (bool, error) {
	raw, err := os.ReadFile(f.files[attr])
	if err != nil {
		return false, err
	}
	return strings.Contains(string(raw), "broken = "), nil
}

func TestBreakerMarksFiles(t *testing.T) {
	srv := jobsetServer(t)
	dir := t.TempDir()
	zsh := filepath.Join(dir, "zsh.nix")
	src := "stdenv.mkDerivation {\n  meta = {\n    description = \"zsh\";\n  };\n}\n"
	if err := os.WriteFile(zsh, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := brokenConfig(srv.URL)
	cfg.MarkComment = "fails on hydra"
	b, err := newBreaker(cfg, nil, fileEval{files: map[string]string{"zsh": zsh}})
	if err != nil {
		t.Fatalf("newBreaker: %v", err)
	}

	err = b.Run(context.Background(), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "jq") {
		t.Fatalf("expected error for jq without a file, got %v", err)
	}
	raw, _ := os.ReadFile(zsh)
	if !strings.Contains(string(raw), "    # fails on hydra\n    broken = stdenv.hostPlatform.isLinux;\n  };") {
		t.Fatalf("zsh not marked:\n%s", raw)
	}
}
