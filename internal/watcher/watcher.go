package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nixpkgs-broken/hydrawatch/internal/logger"
	"github.com/nixpkgs-broken/hydrawatch/pkg/hydra"
	"github.com/nixpkgs-broken/hydrawatch/pkg/publishers"
	"github.com/nixpkgs-broken/hydrawatch/pkg/sources"
)

// Options wires the collaborators of a Service.
type Options struct {
	Resolvers      sources.ResolverRegistry
	Clients        ClientFactory
	DefaultBaseURL string
	Publisher      EventPublisher
	Ledger         Ledger
	Concurrency    int
	Log            logger.Logger
}

// Service runs watch passes over the configured sources.
type Service struct {
	resolvers   sources.ResolverRegistry
	newClient   ClientFactory
	baseURL     string
	publisher   EventPublisher
	ledger      Ledger
	concurrency int
	log         logger.Logger

	mu      sync.Mutex
	clients map[string]BuildClient
}

// Stats summarizes one source pass.
type Stats struct {
	Resolved int
	Failed   int
	Filtered int
	// Unknown counts builds whose job has no supported platform suffix.
	Unknown   int
	Skipped   int
	Published int
}

// NewService builds a watcher service. Resolvers default to the built-in
// source types and Concurrency to hydra.DefaultConcurrency.
func NewService(opts Options) (*Service, error) {
	if opts.Clients == nil {
		return nil, errors.New("watcher: client factory is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("watcher: publisher is required")
	}
	if opts.Resolvers == nil {
		opts.Resolvers = sources.DefaultResolverRegistry()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = hydra.DefaultConcurrency
	}
	if opts.DefaultBaseURL == "" {
		opts.DefaultBaseURL = hydra.DefaultBaseURL
	}
	return &Service{
		resolvers:   opts.Resolvers,
		newClient:   opts.Clients,
		baseURL:     opts.DefaultBaseURL,
		publisher:   opts.Publisher,
		ledger:      opts.Ledger,
		concurrency: opts.Concurrency,
		log:         logger.Ensure(opts.Log),
		clients:     make(map[string]BuildClient),
	}, nil
}

// Run executes one pass over srcs. Per-source failures are logged and
// joined into the returned error; the remaining sources still run.
func (s *Service) Run(ctx context.Context, srcs []sources.Source) error {
	if s == nil || s.newClient == nil {
		return fmt.Errorf("watcher service is not initialized")
	}
	if len(srcs) == 0 {
		return fmt.Errorf("no sources configured for watching")
	}

	var errs []error
	for i, src := range srcs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		stats, err := s.RunSource(ctx, src)
		if err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("source watch failed", "source_error", map[string]any{
				"source_id": src.ID,
				"error":     err.Error(),
			})
		}
		s.log.InfoObj("source watch completed", "source_result", map[string]any{
			"source_id": src.ID,
			"resolved":  stats.Resolved,
			"failed":    stats.Failed,
			"filtered":  stats.Filtered,
			"unknown":   stats.Unknown,
			"skipped":   stats.Skipped,
			"published": stats.Published,
		})

		if i < len(srcs)-1 {
			if err := wait(ctx, src.RequestDelay()); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// RunSource resolves, fetches, filters and publishes the builds of one source.
func (s *Service) RunSource(ctx context.Context, src sources.Source) (Stats, error) {
	var stats Stats

	client, err := s.clientFor(src.BaseURL)
	if err != nil {
		return stats, fmt.Errorf("source %s: %w", src.ID, err)
	}
	resolver, err := s.resolvers.ResolverFor(src)
	if err != nil {
		return stats, fmt.Errorf("source %s: %w", src.ID, err)
	}
	ids, err := resolver.Resolve(ctx, client, src)
	if err != nil {
		return stats, fmt.Errorf("resolve source %s: %w", src.ID, err)
	}
	stats.Resolved = len(ids)

	outcomes := client.FetchBuilds(ctx, ids, s.concurrency)
	var errs []error
	if err := hydra.OutcomeErrors(outcomes); err != nil {
		errs = append(errs, err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			stats.Failed++
			s.log.WarnObj("build fetch failed", "build_error", map[string]any{
				"source_id": src.ID,
				"build_id":  o.ID,
				"error":     o.Err.Error(),
			})
			continue
		}

		build := o.Build
		if _, ok := build.KnownPlatform(); !ok {
			stats.Unknown++
			s.log.DebugObj("build on unknown platform skipped", "build_skip", map[string]any{
				"source_id": src.ID,
				"build_id":  build.ID,
				"job":       build.Job,
			})
			continue
		}
		if !src.Allows(build.BuildStatus) {
			stats.Filtered++
			continue
		}

		if s.ledger != nil {
			seen, err := s.ledger.Reported(build.ID, build.BuildStatus)
			if err != nil {
				errs = append(errs, fmt.Errorf("ledger lookup for build %d: %w", build.ID, err))
				continue
			}
			if seen {
				stats.Skipped++
				continue
			}
		}

		delivered, err := s.publisher.Publish(ctx, publishers.NewEvent(src.ID, src.Name, build))
		if err != nil {
			errs = append(errs, fmt.Errorf("publish build %d: %w", build.ID, err))
		}
		if delivered == 0 {
			continue
		}
		stats.Published++

		if s.ledger != nil {
			if err := s.ledger.MarkReported(build.ID, build.BuildStatus); err != nil {
				errs = append(errs, fmt.Errorf("ledger mark for build %d: %w", build.ID, err))
			}
		}
	}

	if len(errs) > 0 {
		return stats, fmt.Errorf("source %s: %w", src.ID, errors.Join(errs...))
	}
	return stats, nil
}

func (s *Service) clientFor(baseURL string) (BuildClient, error) {
	key := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if key == "" {
		key = s.baseURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	c, err := s.newClient(key)
	if err != nil {
		return nil, fmt.Errorf("hydra client for %s: %w", key, err)
	}
	s.clients[key] = c
	return c, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
