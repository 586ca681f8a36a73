package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Package sources declares which Hydra builds the watcher follows.

const (
	TypeBuilds     = "builds"
	TypeEval       = "eval"
	TypeLatestEval = "latest_eval"
	TypeEvalHTML   = "eval_html"
)

// Source is one entry of the sources registry file.
type Source struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           string         `json:"type" yaml:"type"`
	BaseURL        string         `json:"base_url" yaml:"base_url"`
	BuildIDs       []uint64       `json:"build_ids" yaml:"build_ids"`
	Project        string         `json:"project" yaml:"project"`
	Jobset         string         `json:"jobset" yaml:"jobset"`
	EvalID         uint64         `json:"eval_id" yaml:"eval_id"`
	Statuses       []uint16       `json:"statuses" yaml:"statuses"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// Registry holds the sources loaded from a registry file.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	idx     map[string]Source
}

// LoadRegistry loads the sources registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	return parseRegistry(raw, filepath.Ext(path))
}

func parseRegistry(data []byte, ext string) (*Registry, error) {
	file, err := decodeRegistryFile(data, ext)
	if err != nil {
		return nil, err
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	reg := &Registry{
		sources: make([]Source, len(file.Sources)),
		idx:     make(map[string]Source, len(file.Sources)),
	}
	for i := range file.Sources {
		src := sanitizeSource(file.Sources[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := reg.idx[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		reg.sources[i] = src
		reg.idx[src.ID] = src
	}
	return reg, nil
}

type unmarshalFn func([]byte, any) error

func decodeRegistryFile(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file registryFile
		if err := d.fn(data, &file); err == nil {
			return file, nil
		}
	}

	return registryFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

func sanitizeSource(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.Project = strings.TrimSpace(s.Project)
	s.Jobset = strings.TrimSpace(s.Jobset)

	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Config == nil {
		s.Config = map[string]any{}
	}
	if s.RequestDelayMs < 0 {
		s.RequestDelayMs = 0
	}
	return s
}

func validateSource(s Source) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	switch s.Type {
	case TypeBuilds:
		if len(s.BuildIDs) == 0 {
			return fmt.Errorf("build_ids is required for source %q", s.ID)
		}
		for _, id := range s.BuildIDs {
			if id == 0 {
				return fmt.Errorf("build_ids must be positive for source %q", s.ID)
			}
		}
	case TypeEval:
		if s.EvalID == 0 {
			return fmt.Errorf("eval_id is required for source %q", s.ID)
		}
	case TypeLatestEval:
		if s.Project == "" || s.Jobset == "" {
			return fmt.Errorf("project and jobset are required for source %q", s.ID)
		}
	case TypeEvalHTML:
		if s.EvalID == 0 && (s.Project == "" || s.Jobset == "") {
			return fmt.Errorf("eval_id or project/jobset is required for source %q", s.ID)
		}
	case "":
		return fmt.Errorf("type is required for source %q", s.ID)
	default:
		return fmt.Errorf("unsupported type %q for source %q", s.Type, s.ID)
	}
	return nil
}

// All returns all configured sources in file order.
func (r *Registry) All() []Source {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// ByID returns the source with the given id.
func (r *Registry) ByID(id string) (Source, bool) {
	if r == nil {
		return Source{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[strings.TrimSpace(id)]
	return s, ok
}

// Allows reports whether builds with status should be reported for this source.
// An empty status list allows everything.
func (s Source) Allows(status uint16) bool {
	if len(s.Statuses) == 0 {
		return true
	}
	for _, st := range s.Statuses {
		if st == status {
			return true
		}
	}
	return false
}

// RequestDelay returns the pause taken after processing the source.
func (s Source) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// ConfigString returns the trimmed string value for key from Source.Config or a fallback.
func ConfigString(s Source, key, fallback string) string {
	if s.Config != nil {
		if raw, ok := s.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}
