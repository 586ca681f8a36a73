package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// stdoutPublisher writes each event as one JSON line.
type stdoutPublisher struct {
	id  string
	mu  sync.Mutex
	enc *json.Encoder
}

func newStdoutPublisher(_ context.Context, cfg PublisherConfig, _ Logger) (Publisher, error) {
	return newWriterPublisher(cfg.ID, os.Stdout), nil
}

func newWriterPublisher(id string, w io.Writer) *stdoutPublisher {
	return &stdoutPublisher{id: id, enc: json.NewEncoder(w)}
}

func (s *stdoutPublisher) ID() string   { return s.id }
func (s *stdoutPublisher) Type() string { return TypeStdout }

func (s *stdoutPublisher) Publish(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(evt); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
