package publishers

import (
	"strconv"
	"time"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	SourceID   string             `json:"source_id"`
	SourceName string             `json:"source_name"`
	Build      domain.BuildResult `json:"build"`
	FetchedAt  time.Time          `json:"fetched_at"`
}

// NewEvent constructs an Event for a build fetched on behalf of a source.
func NewEvent(sourceID, sourceName string, build domain.BuildResult) Event {
	return Event{
		SourceID:   sourceID,
		SourceName: sourceName,
		Build:      build,
		FetchedAt:  time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"source_id":   e.SourceID,
		"build_id":    strconv.FormatUint(e.Build.ID, 10),
		"buildstatus": strconv.FormatUint(uint64(e.Build.BuildStatus), 10),
		"system":      e.Build.System,
	}
}
