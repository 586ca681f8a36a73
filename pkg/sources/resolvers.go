package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// HydraAPI is the subset of the Hydra client resolvers rely on.
type HydraAPI interface {
	LatestEval(ctx context.Context, project, jobset string) (uint64, error)
	EvalBuilds(ctx context.Context, evalID uint64) ([]uint64, error)
	EvalPage(ctx context.Context, evalID uint64) ([]byte, error)
}

// Resolver turns a source into the build ids it currently covers.
type Resolver interface {
	Type() string
	Resolve(ctx context.Context, api HydraAPI, src Source) ([]uint64, error)
}

// ResolverRegistry resolves the resolver implementation for a given source.
type ResolverRegistry interface {
	ResolverFor(src Source) (Resolver, error)
}

type resolverRegistry struct {
	mu     sync.RWMutex
	byType map[string]Resolver
}

// NewResolverRegistry builds a registry keyed by each resolver's Type.
func NewResolverRegistry(resolvers ...Resolver) ResolverRegistry {
	reg := &resolverRegistry{byType: make(map[string]Resolver, len(resolvers))}
	for _, r := range resolvers {
		if r == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(r.Type()))
		if key == "" {
			continue
		}
		reg.byType[key] = r
	}
	return reg
}

// DefaultResolverRegistry wires up the known source types.
func DefaultResolverRegistry() ResolverRegistry {
	return NewResolverRegistry(
		buildsResolver{},
		evalResolver{},
		latestEvalResolver{},
		evalHTMLResolver{},
	)
}

// ResolverFor selects the resolver for the source's type.
func (r *resolverRegistry) ResolverFor(src Source) (Resolver, error) {
	if r == nil {
		return nil, fmt.Errorf("resolver registry is nil")
	}
	if strings.TrimSpace(src.ID) == "" {
		return nil, fmt.Errorf("source id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if res, ok := r.byType[strings.ToLower(strings.TrimSpace(src.Type))]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("no resolver registered for source %q (type %q)", src.ID, src.Type)
}

type buildsResolver struct{}

func (buildsResolver) Type() string { return TypeBuilds }

func (buildsResolver) Resolve(_ context.Context, _ HydraAPI, src Source) ([]uint64, error) {
	return dedupe(src.BuildIDs), nil
}

type evalResolver struct{}

func (evalResolver) Type() string { return TypeEval }

func (evalResolver) Resolve(ctx context.Context, api HydraAPI, src Source) ([]uint64, error) {
	ids, err := api.EvalBuilds(ctx, src.EvalID)
	if err != nil {
		return nil, fmt.Errorf("eval %d builds: %w", src.EvalID, err)
	}
	return dedupe(ids), nil
}

type latestEvalResolver struct{}

func (latestEvalResolver) Type() string { return TypeLatestEval }

func (latestEvalResolver) Resolve(ctx context.Context, api HydraAPI, src Source) ([]uint64, error) {
	evalID, err := api.LatestEval(ctx, src.Project, src.Jobset)
	if err != nil {
		return nil, fmt.Errorf("latest eval of %s/%s: %w", src.Project, src.Jobset, err)
	}
	ids, err := api.EvalBuilds(ctx, evalID)
	if err != nil {
		return nil, fmt.Errorf("eval %d builds: %w", evalID, err)
	}
	return dedupe(ids), nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
