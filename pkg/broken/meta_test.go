package broken

import (
	"errors"
	"strings"
	"testing"
)

const jqNix = `{ lib, stdenv, fetchurl }:

stdenv.mkDerivation rec {
  pname = "jq";
  version = "1.6";

  meta = with lib; {
    description = "A lightweight and flexible command-line JSON processor";
    license = licenses.mit;
    platforms = platforms.unix;
  };
}
`

func TestInsertMarkAddsBrokenAtMetaEnd(t *testing.T) {
	out, err := InsertMark([]byte(jqNix), "stdenv.hostPlatform.isDarwin", "")
	if err != nil {
		t.Fatalf("InsertMark: %v", err)
	}
	want := strings.Replace(jqNix,
		"    platforms = platforms.unix;\n  };",
		"    platforms = platforms.unix;\n    broken = stdenv.hostPlatform.isDarwin;\n  };", 1)
	if string(out) != want {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestInsertMarkWithComment(t *testing.T) {
	out, err := InsertMark([]byte(jqNix), "true", "fails since 2022-06-23")
	if err != nil {
		t.Fatalf("InsertMark: %v", err)
	}
	if !strings.Contains(string(out), "    # fails since 2022-06-23\n    broken = true;\n  };") {
		t.Fatalf("comment not placed above mark:\n%s", out)
	}
}

func TestInsertMarkReplacesPlatformMark(t *testing.T) {
	src := strings.Replace(jqNix, "    license = licenses.mit;\n", "    license = licenses.mit;\n    broken = stdenv.isDarwin;\n", 1)
	out, err := InsertMark([]byte(src), "true", "")
	if err != nil {
		t.Fatalf("InsertMark: %v", err)
	}
	if strings.Count(string(out), "broken =") != 1 || !strings.Contains(string(out), "broken = true;") {
		t.Fatalf("old mark should be replaced:\n%s", out)
	}
}

func TestInsertMarkRefusals(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "no meta", src: "{ }:\nstdenv.mkDerivation {\n  pname = \"x\";\n}\n"},
		{name: "one line meta", src: "{\n  meta = { description = \"x\"; };\n}\n"},
		{name: "two broken lines", src: strings.Replace(jqNix, "    license", "    broken = true;\n    broken = false;\n    license", 1)},
		{name: "multi-line broken", src: strings.Replace(jqNix, "    license", "    broken = stdenv.isDarwin\n      || stdenv.isAarch64;\n    license", 1)},
		{name: "conditional broken", src: strings.Replace(jqNix, "    license", "    broken = stdenv.hostPlatform.isStatic;\n    license", 1)},
		{name: "commented broken", src: strings.Replace(jqNix, "    license", "    # needs a newer openssl\n    broken = true;\n    license", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := InsertMark([]byte(tt.src), "true", ""); err == nil {
				t.Fatalf("expected InsertMark to refuse")
			}
		})
	}

	if _, err := InsertMark([]byte("{ }\n"), "true", ""); !errors.Is(err, ErrNoMeta) {
		t.Fatalf("expected ErrNoMeta, got %v", err)
	}
	if _, err := InsertMark([]byte(jqNix), "true", "see https://example.com"); err == nil {
		t.Fatalf("comment with '/' should be rejected")
	}
}

func TestLeadingSpaces(t *testing.T) {
	tests := map[string]int{
		"":                0,
		"hello world":     0,
		"  hello world":   2,
		"  hello world  ": 2,
	}
	for in, want := range tests {
		if got := leadingSpaces(in); got != want {
			t.Fatalf("leadingSpaces(%q) = %d, want %d", in, got, want)
		}
	}
}
