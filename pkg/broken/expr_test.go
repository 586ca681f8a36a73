package broken

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExpression(t *testing.T) {
	tests := []struct {
		name      string
		platforms []string
		want      string
	}{
		{
			name:      "single platform",
			platforms: []string{"aarch64-linux"},
			want:      "stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isAarch64",
		},
		{
			name:      "two unrelated platforms are sorted and wrapped",
			platforms: []string{"x86_64-darwin", "aarch64-linux"},
			want:      "(stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isAarch64) || (stdenv.hostPlatform.isDarwin && stdenv.hostPlatform.isx86_64)",
		},
		{
			name:      "both linux platforms collapse",
			platforms: []string{"x86_64-linux", "aarch64-linux"},
			want:      "stdenv.hostPlatform.isLinux",
		},
		{
			name:      "family plus one platform",
			platforms: []string{"aarch64-darwin", "x86_64-darwin", "x86_64-linux"},
			want:      "stdenv.hostPlatform.isDarwin || (stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isx86_64)",
		},
		{
			name:      "both families",
			platforms: []string{"aarch64-linux", "x86_64-linux", "aarch64-darwin"},
			want:      "stdenv.hostPlatform.isLinux || (stdenv.hostPlatform.isDarwin && stdenv.hostPlatform.isAarch64)",
		},
		{
			name:      "every supported platform",
			platforms: []string{"x86_64-linux", "aarch64-darwin", "aarch64-linux", "x86_64-darwin"},
			want:      "true",
		},
		{
			name:      "duplicates ignored",
			platforms: []string{"x86_64-linux", "x86_64-linux"},
			want:      "stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isx86_64",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expression(tt.platforms)
			if err != nil {
				t.Fatalf("Expression: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Expression(%v)\n got %s\nwant %s", tt.platforms, got, tt.want)
			}
		})
	}
}

func TestExpressionErrors(t *testing.T) {
	if _, err := Expression(nil); !errors.Is(err, ErrNoPlatforms) {
		t.Fatalf("expected ErrNoPlatforms, got %v", err)
	}
	if _, err := Expression([]string{"aarch64-linux", "i686-linux"}); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestPlanMark(t *testing.T) {
	plan, err := PlanMark("jq", []string{"aarch64-linux"}, []string{"x86_64-linux"})
	if err != nil {
		t.Fatalf("PlanMark: %v", err)
	}
	want := Plan{
		Attr:      "jq",
		Platforms: []string{"aarch64-linux", "x86_64-linux"},
		Expr:      "stdenv.hostPlatform.isLinux",
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}

	if _, err := PlanMark("jq", []string{"aarch64-linux"}, []string{"aarch64-linux", "x86_64-darwin"}); !errors.Is(err, ErrAlreadyMarked) {
		t.Fatalf("expected ErrAlreadyMarked, got %v", err)
	}

	_, err = PlanMark("python310Packages.requests", []string{"aarch64-linux"}, nil)
	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError for denied attr, got %v", err)
	}
}

func TestCheckFile(t *testing.T) {
	if err := CheckFile("nodePackages.foo", "/nixpkgs/pkgs/development/node-packages/node-packages.nix"); err == nil {
		t.Fatalf("expected shared node file to be denied")
	}
	if err := CheckFile("jq", "/nixpkgs/pkgs/development/tools/jq/default.nix"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
