package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nixpkgs-broken/hydrawatch/internal/config"
	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
	"github.com/nixpkgs-broken/hydrawatch/internal/logger"
	"github.com/nixpkgs-broken/hydrawatch/pkg/broken"
	"github.com/nixpkgs-broken/hydrawatch/pkg/hydra"
)

// Breaker lists the directly failing jobs of a jobset's latest evaluation
// and, given a nixpkgs checkout, marks them broken.
type Breaker struct {
	cfg    *config.Config
	client *hydra.Client
	marker *broken.Marker
	log    logger.Logger
}

// NewBreaker builds the runtime. Without cfg.NixpkgsPath it only reports.
func NewBreaker(cfg *config.Config, log logger.Logger) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	var eval broken.Evaluator
	if cfg.NixpkgsPath != "" {
		eval = broken.NixEvaluator{Dir: cfg.NixpkgsPath}
	}
	return newBreaker(cfg, log, eval)
}

func newBreaker(cfg *config.Config, log logger.Logger, eval broken.Evaluator) (*Breaker, error) {
	client, err := newHydraClient(cfg, cfg.HydraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init hydra client: %w", err)
	}
	b := &Breaker{cfg: cfg, client: client, log: logger.Ensure(log)}
	if eval != nil {
		b.marker = broken.NewMarker(eval)
	}
	return b, nil
}

// Run writes one `attr.platform` line per failing job to w, then plans or
// applies a broken mark per attribute.
func (b *Breaker) Run(ctx context.Context, w io.Writer) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("breaker is not initialized")
	}

	builds, err := b.fetchLatest(ctx)
	if err != nil {
		return err
	}

	jobs := broken.FailingJobs(builds)
	for _, j := range jobs {
		if _, err := fmt.Fprintln(w, j.String()); err != nil {
			return err
		}
	}

	var errs []error
	for _, t := range broken.Targets(jobs) {
		if err := b.handle(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Breaker) fetchLatest(ctx context.Context) ([]domain.BuildResult, error) {
	evalID, err := b.client.LatestEval(ctx, b.cfg.JobsetProject, b.cfg.JobsetName)
	if err != nil {
		return nil, fmt.Errorf("latest eval of %s: %w", b.cfg.Jobset, err)
	}
	ids, err := b.client.EvalBuilds(ctx, evalID)
	if err != nil {
		return nil, fmt.Errorf("builds of eval %d: %w", evalID, err)
	}

	outcomes := b.client.FetchBuilds(ctx, ids, b.cfg.MaxConcurrency)
	builds := make([]domain.BuildResult, 0, len(outcomes))
	unknown := 0
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		if _, ok := o.Build.KnownPlatform(); !ok {
			unknown++
		}
		builds = append(builds, o.Build)
	}
	if err := hydra.OutcomeErrors(outcomes); err != nil {
		b.log.WarnObj("some builds could not be fetched", "fetch_errors", map[string]any{
			"eval_id": evalID,
			"failed":  len(outcomes) - len(builds),
			"error":   err.Error(),
		})
	}
	b.log.InfoObj("evaluation fetched", "eval_meta", map[string]any{
		"jobset":           b.cfg.Jobset,
		"eval_id":          evalID,
		"builds":           len(builds),
		"unknown_platform": unknown,
	})
	return builds, nil
}

func (b *Breaker) handle(ctx context.Context, t broken.Target) error {
	if b.marker == nil {
		plan, err := broken.PlanMark(t.Attr, t.Platforms, nil)
		if err != nil {
			b.log.InfoObj("attr skipped", "mark_skip", map[string]any{"attr": t.Attr, "reason": err.Error()})
			return nil
		}
		b.log.InfoObj("broken mark planned", "mark_plan", map[string]any{
			"attr":      plan.Attr,
			"platforms": plan.Platforms,
			"broken":    plan.Expr,
		})
		return nil
	}

	res, err := b.marker.Mark(ctx, t.Attr, t.Platforms, b.cfg.MarkComment)
	var skip *broken.SkipError
	switch {
	case errors.As(err, &skip), errors.Is(err, broken.ErrAlreadyMarked):
		b.log.InfoObj("attr skipped", "mark_skip", map[string]any{"attr": t.Attr, "reason": err.Error()})
		return nil
	case err != nil:
		b.log.WarnObj("broken mark failed", "mark_error", map[string]any{"attr": t.Attr, "error": err.Error()})
		return err
	}
	b.log.InfoObj("broken mark applied", "mark_result", map[string]any{
		"attr":      res.Attr,
		"file":      res.File,
		"platforms": res.Platforms,
		"broken":    res.Expr,
	})
	return nil
}
