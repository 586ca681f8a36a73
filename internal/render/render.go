package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

// Output formats accepted by Build.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Build writes the build record to w in the requested format.
func Build(w io.Writer, build domain.BuildResult, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "":
		return text(w, build)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(build)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(build); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func text(w io.Writer, b domain.BuildResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"id", strconv.FormatUint(b.ID, 10)},
		{"project", b.Project},
		{"jobset", b.Jobset},
		{"job", b.Job},
		{"attr", b.Attr()},
		{"platform", b.Platform()},
		{"nixname", b.NixName},
		{"system", b.System},
		{"buildstatus", strconv.FormatUint(uint64(b.BuildStatus), 10)},
		{"finished", strconv.FormatUint(uint64(b.Finished), 10)},
		{"timestamp", timestamp(b.Timestamp)},
		{"jobsetevals", evals(b.JobsetEvals)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func timestamp(ts uint64) string {
	raw := strconv.FormatUint(ts, 10)
	if ts > uint64(1<<62) {
		return raw
	}
	return raw + " (" + time.Unix(int64(ts), 0).UTC().Format(time.RFC3339) + ")"
}

func evals(ids []uint64) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ", ")
}
