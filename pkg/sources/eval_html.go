package sources

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

// ConfigStatusTitleKey restricts eval_html sources to rows whose status icon
// carries this title, e.g. "Failed".
const ConfigStatusTitleKey = "status_title"

// ConfigPlatformKey restricts eval_html sources to jobs built for one
// platform, e.g. "x86_64-linux".
const ConfigPlatformKey = "platform"

// BuildRow is one row of a Hydra evaluation build table.
type BuildRow struct {
	BuildID     uint64
	StatusTitle string
	Job         string
}

// Platform returns the platform suffix of the row's job and whether it is
// supported. Rows without a job column report ok so they are not dropped.
func (r BuildRow) Platform() (string, bool) {
	if r.Job == "" {
		return "", true
	}
	return domain.BuildResult{Job: r.Job}.KnownPlatform()
}

// evalHTMLResolver scrapes the evaluation page instead of using the JSON API.
type evalHTMLResolver struct{}

func (evalHTMLResolver) Type() string { return TypeEvalHTML }

func (evalHTMLResolver) Resolve(ctx context.Context, api HydraAPI, src Source) ([]uint64, error) {
	evalID := src.EvalID
	if evalID == 0 {
		latest, err := api.LatestEval(ctx, src.Project, src.Jobset)
		if err != nil {
			return nil, fmt.Errorf("latest eval of %s/%s: %w", src.Project, src.Jobset, err)
		}
		evalID = latest
	}

	page, err := api.EvalPage(ctx, evalID)
	if err != nil {
		return nil, fmt.Errorf("eval %d page: %w", evalID, err)
	}
	rows, err := ParseEvalPage(page)
	if err != nil {
		return nil, fmt.Errorf("parse eval %d page: %w", evalID, err)
	}

	want := ConfigString(src, ConfigStatusTitleKey, "")
	wantPlatform := ConfigString(src, ConfigPlatformKey, "")
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		if want != "" && !strings.EqualFold(row.StatusTitle, want) {
			continue
		}
		platform, ok := row.Platform()
		if !ok || (wantPlatform != "" && platform != wantPlatform) {
			continue
		}
		ids = append(ids, row.BuildID)
	}
	return dedupe(ids), nil
}

// ParseEvalPage extracts build rows from the tables of an evaluation page.
// Rows without a build link are skipped.
func ParseEvalPage(body []byte) ([]BuildRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []BuildRow
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		href, ok := tr.Find(`a[href*="/build/"]`).First().Attr("href")
		if !ok {
			return
		}
		id, ok := buildIDFromHref(href)
		if !ok {
			return
		}
		status, _ := tr.Find(".build-status").First().Attr("title")
		rows = append(rows, BuildRow{
			BuildID:     id,
			StatusTitle: strings.TrimSpace(status),
			Job:         strings.TrimSpace(tr.Find("td").Eq(2).Text()),
		})
	})
	return rows, nil
}

func buildIDFromHref(href string) (uint64, bool) {
	idx := strings.LastIndex(href, "/build/")
	if idx < 0 {
		return 0, false
	}
	rest := href[idx+len("/build/"):]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
