package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nixpkgs-broken/hydrawatch/internal/config"
	"github.com/nixpkgs-broken/hydrawatch/internal/logger"
	"github.com/nixpkgs-broken/hydrawatch/internal/storage"
	"github.com/nixpkgs-broken/hydrawatch/internal/watcher"
	"github.com/nixpkgs-broken/hydrawatch/pkg/publishers"
	"github.com/nixpkgs-broken/hydrawatch/pkg/sources"
)

// Watcher represents the watch runtime. It owns the poll loop, the
// publisher fanout and the report ledger.
type Watcher struct {
	cfg          *config.Config
	sourceReg    *sources.Registry
	fanout       *publishers.Fanout
	service      *watcher.Service
	pollInterval time.Duration
	log          logger.Logger
	store        storage.Store
}

// NewWatcher builds a watcher runtime from config files.
func NewWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceList := sourceReg.All()
	sourceIDs := make([]string, 0, len(sourceList))
	for _, s := range sourceList {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	publisherReg, err := loadPublishers(cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		EntryTTL:        cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"entry_ttl_seconds":        int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	service, err := watcher.NewService(watcher.Options{
		Clients:        hydraClientFactory(cfg),
		DefaultBaseURL: cfg.HydraBaseURL,
		Publisher:      fanout,
		Ledger:         store,
		Concurrency:    cfg.MaxConcurrency,
		Log:            log,
	})
	if err != nil {
		_ = fanout.Close()
		_ = store.Close()
		return nil, err
	}

	return &Watcher{
		cfg:          cfg,
		sourceReg:    sourceReg,
		fanout:       fanout,
		service:      service,
		pollInterval: cfg.PollInterval,
		log:          log,
		store:        store,
	}, nil
}

// loadPublishers reads the publishers file, falling back to stdout when it does not exist.
func loadPublishers(path string, log logger.Logger) (*publishers.ConfigRegistry, error) {
	reg, err := publishers.LoadRegistry(path)
	if err == nil {
		return reg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		log.WarnObj("publishers file not found; writing events to stdout", "publishers_file", path)
		return publishers.StdoutRegistry(), nil
	}
	return nil, fmt.Errorf("load publishers registry: %w", err)
}

// Run starts the poll loop until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.close()

	srcs := w.sourceReg.All()
	if len(srcs) == 0 {
		w.log.WarnObj("no sources configured; watcher idle", "sources_file", w.cfg.SourcesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	w.log.InfoObj("watch loop starting", "watcher_state", map[string]any{
		"sources_count":    len(srcs),
		"publishers_count": w.fanout.Size(),
		"poll_interval":    w.pollInterval.String(),
	})

	if err := w.RunOnce(ctx, srcs); err != nil {
		w.log.ErrorObj("initial watch pass failed", "error", err.Error())
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.InfoObj("watch loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := w.RunOnce(ctx, srcs); err != nil {
				w.log.ErrorObj("scheduled watch pass failed", "error", err.Error())
			}
		}
	}
}

// RunOnce performs a single watch pass across srcs.
func (w *Watcher) RunOnce(ctx context.Context, srcs []sources.Source) error {
	start := time.Now()
	w.log.InfoObj("watch pass started", "watch_meta", map[string]any{
		"sources_count": len(srcs),
		"started_at":    start.UTC(),
	})
	if err := w.service.Run(ctx, srcs); err != nil {
		return err
	}
	w.log.InfoObj("watch pass completed", "watch_meta", map[string]any{
		"sources_count": len(srcs),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return nil
}

// close releases the publishers and the storage backend, logging any errors.
func (w *Watcher) close() {
	if w.fanout != nil {
		if err := w.fanout.Close(); err != nil {
			w.log.ErrorObj("publisher close failed", "error", err.Error())
		}
	}
	if w.store != nil {
		if err := w.store.Close(); err != nil {
			w.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}
