package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, environment variables and defaults.
type Config struct {
	AppName               string        `mapstructure:"app_name"`
	Env                   string        `mapstructure:"app_env"`
	LogLevel              string        `mapstructure:"log_level"`
	HydraBaseURL          string        `mapstructure:"hydra_base_url"`
	BuildID               uint64        `mapstructure:"build_id"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	MaxConcurrency        int           `mapstructure:"max_concurrency"`
	UserAgent             string        `mapstructure:"user_agent"`
	OutputFormat          string        `mapstructure:"output_format"`
	TracingEnabled        bool          `mapstructure:"tracing_enabled"`

	SourcesFile         string        `mapstructure:"sources_file"`
	PublishersFile      string        `mapstructure:"publishers_file"`
	PollIntervalSeconds int64         `mapstructure:"poll_interval"`
	PollInterval        time.Duration `mapstructure:"-"`

	Jobset        string `mapstructure:"jobset"`
	JobsetProject string `mapstructure:"-"`
	JobsetName    string `mapstructure:"-"`
	NixpkgsPath   string `mapstructure:"nixpkgs_path"`
	MarkComment   string `mapstructure:"mark_comment"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

var outputFormats = map[string]bool{"text": true, "json": true, "yaml": true}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"build-id":        "build_id",
	"base-url":        "hydra_base_url",
	"output":          "output_format",
	"log-level":       "log_level",
	"timeout":         "request_timeout_seconds",
	"concurrency":     "max_concurrency",
	"sources-file":    "sources_file",
	"publishers-file": "publishers_file",
	"tracing":         "tracing_enabled",
	"jobset":          "jobset",
	"nixpkgs":         "nixpkgs_path",
	"comment":         "mark_comment",
}

// Load reads configuration from command-line args, environment variables and
// defaults, in that order of precedence. args excludes the program name.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "hydrawatch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("hydra_base_url", "https://hydra.nixos.org")
	v.SetDefault("build_id", 202199463)
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("max_concurrency", 10)
	v.SetDefault("user_agent", "hydrawatch")
	v.SetDefault("output_format", "text")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("poll_interval", 900) // seconds
	v.SetDefault("jobset", "nixpkgs/trunk")
	v.SetDefault("nixpkgs_path", "")
	v.SetDefault("mark_comment", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/reported.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.HydraBaseURL = strings.TrimSpace(cfg.HydraBaseURL)
	if cfg.HydraBaseURL == "" {
		return nil, fmt.Errorf("hydra_base_url is required")
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("invalid max_concurrency (must be positive)")
	}

	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	if !outputFormats[cfg.OutputFormat] {
		return nil, fmt.Errorf("invalid output_format %q (expected text, json or yaml)", cfg.OutputFormat)
	}

	if cfg.PollIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid poll_interval (must be positive seconds)")
	}
	cfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second

	project, jobset, ok := strings.Cut(strings.TrimSpace(cfg.Jobset), "/")
	if !ok || project == "" || jobset == "" || strings.Contains(jobset, "/") {
		return nil, fmt.Errorf("invalid jobset %q (expected project/jobset)", cfg.Jobset)
	}
	cfg.JobsetProject, cfg.JobsetName = project, jobset
	cfg.NixpkgsPath = strings.TrimSpace(cfg.NixpkgsPath)

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("hydrawatch", pflag.ContinueOnError)
	fs.Uint64("build-id", 0, "Hydra build id to fetch")
	fs.String("base-url", "", "Hydra instance base URL")
	fs.StringP("output", "o", "", "output format: text, json or yaml")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.Int64("timeout", 0, "request timeout in seconds")
	fs.Int("concurrency", 0, "maximum concurrent build fetches")
	fs.String("sources-file", "", "sources registry file (YAML or JSON)")
	fs.String("publishers-file", "", "publishers registry file (YAML or JSON)")
	fs.Bool("tracing", false, "export OpenTelemetry spans to stderr")
	fs.String("jobset", "", "jobset to scan for broken packages, as project/jobset")
	fs.String("nixpkgs", "", "nixpkgs checkout to edit; empty prints the plan only")
	fs.String("comment", "", "comment placed above each broken mark")
	return fs
}
