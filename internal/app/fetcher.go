package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nixpkgs-broken/hydrawatch/internal/config"
	"github.com/nixpkgs-broken/hydrawatch/internal/logger"
	"github.com/nixpkgs-broken/hydrawatch/internal/render"
	"github.com/nixpkgs-broken/hydrawatch/pkg/hydra"
)

// Fetcher is the one-shot runtime: fetch a single build and render it.
type Fetcher struct {
	cfg    *config.Config
	client *hydra.Client
	log    logger.Logger
}

// NewFetcher builds a one-shot fetcher from config.
func NewFetcher(cfg *config.Config, log logger.Logger) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	client, err := newHydraClient(cfg, cfg.HydraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init hydra client: %w", err)
	}
	return &Fetcher{cfg: cfg, client: client, log: logger.Ensure(log)}, nil
}

// Run fetches the configured build and writes it to w. Transport and
// decode failures are returned unchanged so callers can inspect them.
func (f *Fetcher) Run(ctx context.Context, w io.Writer) error {
	if f == nil || f.client == nil {
		return fmt.Errorf("fetcher is not initialized")
	}

	start := time.Now()
	build, err := f.client.FetchBuild(ctx, f.cfg.BuildID)
	if err != nil {
		f.log.ErrorObj("build fetch failed", "fetch_error", map[string]any{
			"build_id": f.cfg.BuildID,
			"base_url": f.client.BaseURL(),
			"error":    err.Error(),
		})
		return err
	}
	f.log.InfoObj("build fetched", "fetch_meta", map[string]any{
		"build_id":   build.ID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	if err := render.Build(w, build, f.cfg.OutputFormat); err != nil {
		return fmt.Errorf("render build %d: %w", build.ID, err)
	}
	return nil
}
