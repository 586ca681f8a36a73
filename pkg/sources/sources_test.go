package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeFile(t, "sources.yaml", `
sources:
  - id: trunk
    name: nixpkgs trunk
    type: latest_eval
    base_url: https://hydra.nixos.org/
    project: nixpkgs
    jobset: trunk
    statuses: [1]
    request_delay_ms: 250
  - id: pinned
    type: builds
    build_ids: [202199463, 202199464]
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	all := reg.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(all))
	}

	trunk, ok := reg.ByID("trunk")
	if !ok {
		t.Fatalf("trunk source missing")
	}
	if trunk.BaseURL != "https://hydra.nixos.org" {
		t.Fatalf("base_url not trimmed: %q", trunk.BaseURL)
	}
	if trunk.RequestDelay() != 250*time.Millisecond {
		t.Fatalf("RequestDelay = %v", trunk.RequestDelay())
	}
	if !trunk.Allows(1) || trunk.Allows(0) {
		t.Fatalf("status filter not applied: %v", trunk.Statuses)
	}

	pinned, _ := reg.ByID("pinned")
	if pinned.Name != "pinned" {
		t.Fatalf("name should default to id, got %q", pinned.Name)
	}
	if diff := cmp.Diff([]uint64{202199463, 202199464}, pinned.BuildIDs); diff != "" {
		t.Fatalf("build ids (-want +got):\n%s", diff)
	}
	if !pinned.Allows(42) {
		t.Fatalf("empty status list should allow everything")
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "sources.json", `{"sources":[{"id":"e","type":"eval","eval_id":1808000}]}`)
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if s, ok := reg.ByID("e"); !ok || s.EvalID != 1808000 {
		t.Fatalf("unexpected source %+v", s)
	}
}

func TestLoadRegistryRejectsInvalidSources(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "duplicate", content: "sources:\n  - {id: a, type: eval, eval_id: 1}\n  - {id: a, type: eval, eval_id: 2}\n", want: "duplicate"},
		{name: "missing ids", content: "sources:\n  - {id: a, type: builds}\n", want: "build_ids"},
		{name: "zero id", content: "sources:\n  - {id: a, type: builds, build_ids: [0]}\n", want: "positive"},
		{name: "missing jobset", content: "sources:\n  - {id: a, type: latest_eval, project: nixpkgs}\n", want: "jobset"},
		{name: "unknown type", content: "sources:\n  - {id: a, type: github}\n", want: "unsupported type"},
		{name: "empty", content: "sources: []\n", want: "no sources"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry(writeFile(t, "sources.yaml", tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := LoadRegistry(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestConfigString(t *testing.T) {
	src := Source{Config: map[string]any{"status_title": "  Failed ", "n": 3}}
	if got := ConfigString(src, "status_title", ""); got != "Failed" {
		t.Fatalf("ConfigString = %q", got)
	}
	if got := ConfigString(src, "n", "fallback"); got != "fallback" {
		t.Fatalf("non-string value should fall back, got %q", got)
	}
}
