package hydra

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
	"github.com/nixpkgs-broken/hydrawatch/pkg/httpclient"
)

const (
	// DefaultBaseURL is the public NixOS Hydra instance.
	DefaultBaseURL = "https://hydra.nixos.org"
	// DefaultConcurrency bounds FetchBuilds when no limit is given.
	DefaultConcurrency = 10

	tracerName = "github.com/nixpkgs-broken/hydrawatch/pkg/hydra"
)

// BuildFetcher returns the raw body of /build/{id}.
type BuildFetcher interface {
	FetchBuildBody(ctx context.Context, id uint64) ([]byte, error)
}

// FetchBuild fetches one build through f and decodes it. Decoding starts
// only after the whole body has been received.
func FetchBuild(ctx context.Context, f BuildFetcher, id uint64) (domain.BuildResult, error) {
	body, err := f.FetchBuildBody(ctx, id)
	if err != nil {
		return domain.BuildResult{}, err
	}
	return DecodeBuildResult(body)
}

// Client talks to one Hydra instance.
type Client struct {
	baseURL   string
	transport *Transport
	tracer    trace.Tracer
}

// NewClient builds a Client for baseURL. A nil httpClient uses resty with no timeout.
func NewClient(baseURL string, httpClient httpclient.Client) (*Client, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = httpclient.NewRestyClient(0)
	}
	return &Client{
		baseURL:   base,
		transport: NewTransport(httpClient),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string { return c.baseURL }

// BuildURL returns the resource URL of build id on the instance at base.
func BuildURL(base string, id uint64) (string, error) {
	if id == 0 {
		return "", ErrInvalidBuildID
	}
	norm, err := normalizeBaseURL(base)
	if err != nil {
		return "", err
	}
	return norm + "/build/" + strconv.FormatUint(id, 10), nil
}

// FetchBuildBody implements BuildFetcher.
func (c *Client) FetchBuildBody(ctx context.Context, id uint64) ([]byte, error) {
	u, err := BuildURL(c.baseURL, id)
	if err != nil {
		return nil, err
	}
	return c.transport.Get(ctx, u)
}

// FetchBuild fetches and decodes /build/{id}.
func (c *Client) FetchBuild(ctx context.Context, id uint64) (domain.BuildResult, error) {
	ctx, span := c.tracer.Start(ctx, "hydra.FetchBuild", trace.WithAttributes(
		attribute.String("hydra.base_url", c.baseURL),
		attribute.String("hydra.build_id", strconv.FormatUint(id, 10)),
	))
	defer span.End()

	build, err := FetchBuild(ctx, c, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.BuildResult{}, err
	}
	span.SetAttributes(attribute.Int("hydra.buildstatus", int(build.BuildStatus)))
	return build, nil
}

// Outcome is the result of one fetch in a batch.
type Outcome struct {
	ID    uint64
	Build domain.BuildResult
	Err   error
}

// FetchBuilds fetches ids concurrently with at most limit requests in
// flight. Outcomes are returned in input order; a failed fetch does not
// stop the others.
func (c *Client) FetchBuilds(ctx context.Context, ids []uint64, limit int) []Outcome {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]Outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			build, err := c.FetchBuild(ctx, id)
			out[i] = Outcome{ID: id, Build: build, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// OutcomeErrors joins the errors of failed outcomes, or returns nil.
func OutcomeErrors(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("build %d: %w", o.ID, o.Err))
		}
	}
	return errors.Join(errs...)
}

// LatestEval returns the id of the newest evaluation of project/jobset.
func (c *Client) LatestEval(ctx context.Context, project, jobset string) (uint64, error) {
	project, jobset = strings.TrimSpace(project), strings.TrimSpace(jobset)
	if project == "" || jobset == "" {
		return 0, fmt.Errorf("project and jobset are required")
	}
	u := fmt.Sprintf("%s/jobset/%s/%s/evals", c.baseURL, url.PathEscape(project), url.PathEscape(jobset))

	body, err := c.transport.Get(ctx, u)
	if err != nil {
		return 0, err
	}
	ids, err := DecodeEvalIDs(body)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("jobset %s/%s has no evaluations", project, jobset)
	}
	return ids[0], nil
}

// EvalBuilds returns the build ids of evaluation evalID.
func (c *Client) EvalBuilds(ctx context.Context, evalID uint64) ([]uint64, error) {
	if evalID == 0 {
		return nil, fmt.Errorf("eval id must be positive")
	}
	body, err := c.transport.Get(ctx, c.EvalURL(evalID))
	if err != nil {
		return nil, err
	}
	return DecodeEvalBuilds(body)
}

// EvalPage returns the HTML page of evaluation evalID.
func (c *Client) EvalPage(ctx context.Context, evalID uint64) ([]byte, error) {
	if evalID == 0 {
		return nil, fmt.Errorf("eval id must be positive")
	}
	return c.transport.GetWithHeaders(ctx, c.EvalURL(evalID), map[string]string{"Accept": "text/html"})
}

// EvalURL returns the resource URL of evaluation evalID.
func (c *Client) EvalURL(evalID uint64) string {
	return c.baseURL + "/eval/" + strconv.FormatUint(evalID, 10)
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("hydra base url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse hydra base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("hydra base url %q must be absolute", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
