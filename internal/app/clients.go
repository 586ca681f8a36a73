package app

import (
	"github.com/nixpkgs-broken/hydrawatch/internal/config"
	"github.com/nixpkgs-broken/hydrawatch/internal/watcher"
	"github.com/nixpkgs-broken/hydrawatch/pkg/httpclient"
	"github.com/nixpkgs-broken/hydrawatch/pkg/hydra"
)

// newHydraClient builds a Hydra client for baseURL using the configured
// timeout, user agent and connection limit.
func newHydraClient(cfg *config.Config, baseURL string) (*hydra.Client, error) {
	httpClient := httpclient.NewRestyClientWithOptions(httpclient.Options{
		Timeout:         cfg.RequestTimeout,
		UserAgent:       cfg.UserAgent,
		MaxConnsPerHost: cfg.MaxConcurrency,
	})
	return hydra.NewClient(baseURL, httpClient)
}

func hydraClientFactory(cfg *config.Config) watcher.ClientFactory {
	return func(baseURL string) (watcher.BuildClient, error) {
		c, err := newHydraClient(cfg, baseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
