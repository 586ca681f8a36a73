package publishers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestStdoutPublisherWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	pub := newWriterPublisher("out", &buf)

	for i := 0; i < 2; i++ {
		if err := pub.Publish(context.Background(), testEvent()); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var evt Event
	if err := json.Unmarshal([]byte(lines[0]), &evt); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if evt.Build.ID != 202199463 || evt.Build.System != "x86_64-linux" {
		t.Fatalf("unexpected event %#v", evt)
	}
}
