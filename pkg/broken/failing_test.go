package broken

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

func TestFailingJobsAndTargets(t *testing.T) {
	builds := []domain.BuildResult{
		{ID: 1, BuildStatus: 1, Job: "zsh.x86_64-linux"},
		{ID: 2, BuildStatus: 1, Job: "rubyPackages_3_0.kramdown.aarch64-linux"},
		{ID: 3, BuildStatus: 2, Job: "hello.x86_64-linux"},
		{ID: 4, BuildStatus: 1, Job: "stdenvBootstrapTools.x86_64-darwin.test"},
		{ID: 5, BuildStatus: 1, Job: "manual"},
		{ID: 6, BuildStatus: 1, Job: "zsh.aarch64-darwin"},
		{ID: 7, BuildStatus: 0, Job: "jq.x86_64-linux"},
	}

	jobs := FailingJobs(builds)
	var names []string
	for _, j := range jobs {
		names = append(names, j.String())
	}
	wantNames := []string{
		"rubyPackages_3_0.kramdown.aarch64-linux",
		"zsh.aarch64-darwin",
		"zsh.x86_64-linux",
	}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Fatalf("failing jobs mismatch (-want +got):\n%s", diff)
	}

	wantTargets := []Target{
		{Attr: "rubyPackages_3_0.kramdown", Platforms: []string{"aarch64-linux"}},
		{Attr: "zsh", Platforms: []string{"aarch64-darwin", "x86_64-linux"}},
	}
	if diff := cmp.Diff(wantTargets, Targets(jobs)); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestFailingJobsEmpty(t *testing.T) {
	if jobs := FailingJobs(nil); len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %v", jobs)
	}
	if targets := Targets(nil); len(targets) != 0 {
		t.Fatalf("expected no targets, got %v", targets)
	}
}
