package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HydraBaseURL != "https://hydra.nixos.org" {
		t.Fatalf("HydraBaseURL = %q", cfg.HydraBaseURL)
	}
	if cfg.BuildID != 202199463 {
		t.Fatalf("BuildID = %d", cfg.BuildID)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.MaxConcurrency != 10 || cfg.OutputFormat != "text" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PollInterval != 900*time.Second {
		t.Fatalf("PollInterval = %v", cfg.PollInterval)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("BUILD_ID", "11")
	t.Setenv("OUTPUT_FORMAT", "yaml")

	cfg, err := Load([]string{"--build-id", "42", "--timeout", "5"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BuildID != 42 {
		t.Fatalf("flag should win over env, BuildID = %d", cfg.BuildID)
	}
	if cfg.OutputFormat != "yaml" {
		t.Fatalf("env should win over default, OutputFormat = %q", cfg.OutputFormat)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "output", args: []string{"-o", "xml"}, want: "output_format"},
		{name: "concurrency", args: []string{"--concurrency", "-1"}, want: "max_concurrency"},
		{name: "timeout", args: []string{"--timeout", "-3"}, want: "request_timeout_seconds"},
		{name: "unknown flag", args: []string{"--nope"}, want: "parse flags"},
		{name: "jobset without project", args: []string{"--jobset", "trunk"}, want: "jobset"},
		{name: "jobset with extra segment", args: []string{"--jobset", "nixpkgs/trunk/x"}, want: "jobset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadJobset(t *testing.T) {
	cfg, err := Load([]string{"--jobset", "nixos/release-24.05", "--nixpkgs", " /src/nixpkgs "})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JobsetProject != "nixos" || cfg.JobsetName != "release-24.05" {
		t.Fatalf("jobset split = %q/%q", cfg.JobsetProject, cfg.JobsetName)
	}
	if cfg.NixpkgsPath != "/src/nixpkgs" {
		t.Fatalf("NixpkgsPath = %q", cfg.NixpkgsPath)
	}

	def, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if def.JobsetProject != "nixpkgs" || def.JobsetName != "trunk" || def.NixpkgsPath != "" {
		t.Fatalf("unexpected jobset defaults %+v", def)
	}
}
