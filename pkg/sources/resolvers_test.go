package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeAPI serves canned Hydra responses.
type fakeAPI struct {
	latest    uint64
	latestErr error
	builds    map[uint64][]uint64
	pages     map[uint64][]byte
}

func (f *fakeAPI) LatestEval(context.Context, string, string) (uint64, error) {
	return f.latest, f.latestErr
}

func (f *fakeAPI) EvalBuilds(_ context.Context, evalID uint64) ([]uint64, error) {
	ids, ok := f.builds[evalID]
	if !ok {
		return nil, errors.New("unknown eval")
	}
	return ids, nil
}

func (f *fakeAPI) EvalPage(_ context.Context, evalID uint64) ([]byte, error) {
	page, ok := f.pages[evalID]
	if !ok {
		return nil, errors.New("unknown eval")
	}
	return page, nil
}

const evalPage = `
<html><body>
<table>
  <thead><tr><th>Status</th><th>#</th><th>Job</th></tr></thead>
  <tbody>
    <tr>
      <td><img class="build-status" title="Failed" src="/static/images/error_16.png"></td>
      <td><a href="https://hydra.nixos.org/build/101">101</a></td>
      <td>aflplusplus.x86_64-linux</td>
    </tr>
    <tr>
      <td><img class="build-status" title="Succeeded" src="/static/images/checkmark_16.png"></td>
      <td><a href="/build/102#tabs-summary">102</a></td>
      <td>jq.aarch64-linux</td>
    </tr>
    <tr>
      <td><img class="build-status" title="Failed" src="/static/images/error_16.png"></td>
      <td><a href="/build/103">103</a></td>
      <td>stdenvBootstrapTools.x86_64-darwin.test</td>
    </tr>
    <tr><td colspan="3">summary row</td></tr>
  </tbody>
</table>
</body></html>`

func TestResolversByType(t *testing.T) {
	api := &fakeAPI{
		latest: 900,
		builds: map[uint64][]uint64{
			900: {3, 1, 3, 2},
			55:  {7},
		},
		pages: map[uint64][]byte{
			900: []byte(evalPage),
		},
	}
	reg := DefaultResolverRegistry()

	tests := []struct {
		name string
		src  Source
		want []uint64
	}{
		{name: "builds", src: Source{ID: "b", Type: TypeBuilds, BuildIDs: []uint64{5, 5, 6}}, want: []uint64{5, 6}},
		{name: "eval", src: Source{ID: "e", Type: TypeEval, EvalID: 55}, want: []uint64{7}},
		{name: "latest eval", src: Source{ID: "l", Type: TypeLatestEval, Project: "nixpkgs", Jobset: "trunk"}, want: []uint64{3, 1, 2}},
		{name: "eval html", src: Source{ID: "h", Type: TypeEvalHTML, EvalID: 900}, want: []uint64{101, 102}},
		{
			name: "eval html failed only",
			src:  Source{ID: "h", Type: TypeEvalHTML, Project: "nixpkgs", Jobset: "trunk", Config: map[string]any{ConfigStatusTitleKey: "failed"}},
			want: []uint64{101},
		},
		{
			name: "eval html one platform",
			src:  Source{ID: "h", Type: TypeEvalHTML, EvalID: 900, Config: map[string]any{ConfigPlatformKey: "aarch64-linux"}},
			want: []uint64{102},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := reg.ResolverFor(tt.src)
			if err != nil {
				t.Fatalf("ResolverFor: %v", err)
			}
			got, err := res.Resolve(context.Background(), api, tt.src)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolverErrors(t *testing.T) {
	reg := DefaultResolverRegistry()
	if _, err := reg.ResolverFor(Source{ID: "x", Type: "github"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := reg.ResolverFor(Source{Type: TypeBuilds}); err == nil {
		t.Fatalf("expected error for empty id")
	}

	api := &fakeAPI{latestErr: errors.New("down")}
	src := Source{ID: "l", Type: TypeLatestEval, Project: "nixpkgs", Jobset: "trunk"}
	res, _ := reg.ResolverFor(src)
	if _, err := res.Resolve(context.Background(), api, src); err == nil {
		t.Fatalf("expected latest eval error to propagate")
	}
}

func TestParseEvalPage(t *testing.T) {
	rows, err := ParseEvalPage([]byte(evalPage))
	if err != nil {
		t.Fatalf("ParseEvalPage: %v", err)
	}
	want := []BuildRow{
		{BuildID: 101, StatusTitle: "Failed", Job: "aflplusplus.x86_64-linux"},
		{BuildID: 102, StatusTitle: "Succeeded", Job: "jq.aarch64-linux"},
		{BuildID: 103, StatusTitle: "Failed", Job: "stdenvBootstrapTools.x86_64-darwin.test"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
}

func TestBuildRowPlatform(t *testing.T) {
	tests := []struct {
		job      string
		platform string
		ok       bool
	}{
		{job: "jq.aarch64-linux", platform: "aarch64-linux", ok: true},
		{job: "stdenvBootstrapTools.x86_64-darwin.test", platform: "test", ok: false},
		{job: "", platform: "", ok: true},
	}
	for _, tt := range tests {
		platform, ok := BuildRow{Job: tt.job}.Platform()
		if platform != tt.platform || ok != tt.ok {
			t.Errorf("Platform(%q) = %q, %v; want %q, %v", tt.job, platform, ok, tt.platform, tt.ok)
		}
	}
}

func TestBuildIDFromHref(t *testing.T) {
	tests := map[string]uint64{
		"https://hydra.nixos.org/build/202199463": 202199463,
		"/build/5/nixlog/1":                       5,
		"/build/7?foo=bar":                        7,
		"/eval/1808000":                           0,
		"/build/notanumber":                       0,
		"https://hydra.nixos.org/build/0":         0,
	}
	for href, want := range tests {
		got, ok := buildIDFromHref(href)
		if got != want || ok != (want != 0) {
			t.Fatalf("buildIDFromHref(%q) = %d, %v", href, got, ok)
		}
	}
}
