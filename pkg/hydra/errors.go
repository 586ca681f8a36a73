package hydra

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidBuildID is returned before any I/O when a build id is zero.
var ErrInvalidBuildID = errors.New("build id must be positive")

// TransportKind separates "service unreachable" from "service answered with an error".
type TransportKind string

const (
	TransportNetwork TransportKind = "network"
	TransportTimeout TransportKind = "timeout"
	TransportStatus  TransportKind = "status"
)

// TransportError reports a failed fetch: connection/DNS/TLS failure,
// timeout or cancellation, or a non-2xx response.
type TransportError struct {
	Kind       TransportKind
	URL        string
	StatusCode int
	// Snippet holds the start of the error document for status failures.
	Snippet string
	Err     error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportStatus:
		if e.Snippet == "" {
			return fmt.Sprintf("hydra transport: GET %s returned status %d", e.URL, e.StatusCode)
		}
		return fmt.Sprintf("hydra transport: GET %s returned status %d: %s", e.URL, e.StatusCode, e.Snippet)
	default:
		return fmt.Sprintf("hydra transport (%s): GET %s: %v", e.Kind, e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeStage names the step at which a body failed to decode.
type DecodeStage string

const (
	StageSyntax       DecodeStage = "syntax"
	StageNotObject    DecodeStage = "not_object"
	StageMissingField DecodeStage = "missing_field"
	StageWrongType    DecodeStage = "wrong_type"
	StageOutOfRange   DecodeStage = "out_of_range"
)

// DecodeError reports why a body could not be mapped onto a schema.
type DecodeError struct {
	Stage DecodeStage
	// Field is the path of the offending field, e.g. "jobsetevals" or "evals[2].id".
	Field    string
	Expected Kind
	// Observed is the JSON kind found, or the literal for range failures.
	Observed string
	Err      error
}

func (e *DecodeError) Error() string {
	switch e.Stage {
	case StageSyntax:
		return fmt.Sprintf("hydra decode: invalid JSON syntax: %v", e.Err)
	case StageNotObject:
		return fmt.Sprintf("hydra decode: expected JSON object, got %s", e.Observed)
	case StageMissingField:
		return fmt.Sprintf("hydra decode: missing field %q", e.Field)
	case StageWrongType:
		return fmt.Sprintf("hydra decode: field %q: expected %s, got %s", e.Field, e.Expected, e.Observed)
	case StageOutOfRange:
		return fmt.Sprintf("hydra decode: field %q: value %s out of range for %s", e.Field, e.Observed, e.Expected)
	default:
		return fmt.Sprintf("hydra decode: field %q: %v", e.Field, e.Err)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransportError reports whether err wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecodeError reports whether err wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func indexedField(name string, i int) string {
	return name + "[" + strconv.Itoa(i) + "]"
}
