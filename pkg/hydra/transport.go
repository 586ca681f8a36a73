package hydra

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/nixpkgs-broken/hydrawatch/pkg/httpclient"
)

const maxSnippetBytes = 512

// jsonHeaders are sent with every JSON request. Hydra picks its response
// representation from Accept, so both are set.
var jsonHeaders = map[string]string{
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// Transport performs single-attempt GETs and classifies failures.
type Transport struct {
	client httpclient.Client
}

// NewTransport wraps an httpclient.Client.
func NewTransport(client httpclient.Client) *Transport {
	return &Transport{client: client}
}

// Get issues one GET with the JSON headers and returns the full body of a 2xx response.
func (t *Transport) Get(ctx context.Context, url string) ([]byte, error) {
	return t.GetWithHeaders(ctx, url, jsonHeaders)
}

// GetWithHeaders is Get with caller-supplied headers.
func (t *Transport) GetWithHeaders(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := t.client.Get(ctx, url, headers)
	if err != nil {
		return nil, &TransportError{Kind: classify(ctx, err), URL: url, Err: err}
	}

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		return nil, &TransportError{
			Kind:       TransportStatus,
			URL:        url,
			StatusCode: code,
			Snippet:    snippet(resp.Body()),
		}
	}
	return resp.Body(), nil
}

func classify(ctx context.Context, err error) TransportKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}
	return TransportNetwork
}

func snippet(body []byte) string {
	if len(body) > maxSnippetBytes {
		body = body[:maxSnippetBytes]
	}
	return strings.TrimSpace(string(body))
}
