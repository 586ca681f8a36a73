package watcher

import (
	"context"

	"github.com/nixpkgs-broken/hydrawatch/pkg/hydra"
	"github.com/nixpkgs-broken/hydrawatch/pkg/publishers"
	"github.com/nixpkgs-broken/hydrawatch/pkg/sources"
)

// BuildClient resolves and fetches builds from one Hydra instance.
type BuildClient interface {
	sources.HydraAPI
	FetchBuilds(ctx context.Context, ids []uint64, limit int) []hydra.Outcome
}

// ClientFactory returns a client for the given base URL.
type ClientFactory func(baseURL string) (BuildClient, error)

// EventPublisher fans events out to the configured sinks and reports how many accepted it.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Ledger remembers which build statuses were already published.
type Ledger interface {
	Reported(id uint64, status uint16) (bool, error)
	MarkReported(id uint64, status uint16) error
}
