package hydra

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind is the expected type of a schema field.
type Kind string

const (
	KindString      Kind = "string"
	KindUint16      Kind = "uint16"
	KindUint64      Kind = "uint64"
	KindUint64List  Kind = "array of uint64"
	KindObjectList  Kind = "array of object"
	kindObjectValue Kind = "object"
)

// Field declares one member of a JSON object.
type Field struct {
	Name     string
	Kind     Kind
	Optional bool
	// Elem describes the elements of a KindObjectList field.
	Elem Schema
}

// Schema is an ordered list of fields checked by Validate. Members not named
// in the schema are ignored.
type Schema []Field

// Record holds the typed values of a validated object, keyed by field name.
type Record map[string]any

func (r Record) String(name string) string {
	v, _ := r[name].(string)
	return v
}

func (r Record) Uint16(name string) uint16 {
	v, _ := r[name].(uint16)
	return v
}

func (r Record) Uint64(name string) uint64 {
	v, _ := r[name].(uint64)
	return v
}

func (r Record) Uint64s(name string) []uint64 {
	v, _ := r[name].([]uint64)
	return v
}

func (r Record) Records(name string) []Record {
	v, _ := r[name].([]Record)
	return v
}

// Has reports whether an optional field was present.
func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// DecodeObject parses body as a single JSON object and validates it against s.
func DecodeObject(body []byte, s Schema) (Record, error) {
	obj, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	return s.Validate(obj)
}

// Validate checks obj against the schema and returns the typed values.
// Nothing is returned unless every field validates.
func (s Schema) Validate(obj map[string]any) (Record, error) {
	return s.validate(obj, "")
}

func (s Schema) validate(obj map[string]any, prefix string) (Record, error) {
	rec := make(Record, len(s))
	for _, f := range s {
		path := prefix + f.Name
		raw, ok := obj[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return nil, &DecodeError{Stage: StageMissingField, Field: path, Expected: f.Kind}
		}
		val, err := f.convert(raw, path)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = val
	}
	return rec, nil
}

func (f Field) convert(raw any, path string) (any, error) {
	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, wrongType(path, f.Kind, raw)
		}
		return s, nil
	case KindUint16:
		v, err := uintValue(raw, path, f.Kind, 16)
		if err != nil {
			return nil, err
		}
		return uint16(v), nil
	case KindUint64:
		return uintValue(raw, path, f.Kind, 64)
	case KindUint64List:
		items, ok := raw.([]any)
		if !ok {
			return nil, wrongType(path, f.Kind, raw)
		}
		out := make([]uint64, 0, len(items))
		for i, item := range items {
			v, err := uintValue(item, indexedField(path, i), KindUint64, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case KindObjectList:
		items, ok := raw.([]any)
		if !ok {
			return nil, wrongType(path, f.Kind, raw)
		}
		out := make([]Record, 0, len(items))
		for i, item := range items {
			elemPath := indexedField(path, i)
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, wrongType(elemPath, kindObjectValue, item)
			}
			rec, err := f.Elem.validate(obj, elemPath+".")
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("schema field %q has unsupported kind %q", path, f.Kind)
	}
}

// uintValue accepts integer literals only; fractions and exponents are type
// errors, negatives and overflow are range errors. "-0" is zero.
func uintValue(raw any, path string, kind Kind, bits int) (uint64, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, wrongType(path, kind, raw)
	}
	lit := num.String()
	if strings.ContainsAny(lit, ".eE") {
		return 0, &DecodeError{Stage: StageWrongType, Field: path, Expected: kind, Observed: "non-integer number " + lit}
	}
	digits := strings.TrimPrefix(lit, "-")
	if digits != lit && strings.Trim(digits, "0") != "" {
		return 0, &DecodeError{Stage: StageOutOfRange, Field: path, Expected: kind, Observed: lit}
	}
	v, err := strconv.ParseUint(digits, 10, bits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &DecodeError{Stage: StageOutOfRange, Field: path, Expected: kind, Observed: lit, Err: err}
		}
		return 0, &DecodeError{Stage: StageWrongType, Field: path, Expected: kind, Observed: "number " + lit, Err: err}
	}
	return v, nil
}

func wrongType(path string, kind Kind, raw any) error {
	return &DecodeError{Stage: StageWrongType, Field: path, Expected: kind, Observed: jsonKind(raw)}
}

// parseObject reads body as one UTF-8 JSON object. Duplicate keys at any
// depth are a syntax error.
func parseObject(body []byte) (map[string]any, error) {
	if !utf8.Valid(body) {
		return nil, &DecodeError{Stage: StageSyntax, Err: errInvalidUTF8}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	v, err := readValue(dec, "")
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, &DecodeError{Stage: StageSyntax, Err: err}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Stage: StageNotObject, Expected: kindObjectValue, Observed: jsonKind(v)}
	}
	return obj, nil
}

var errInvalidUTF8 = errors.New("body is not valid UTF-8")

func readValue(dec *json.Decoder, path string) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, syntaxError(err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := make(map[string]any)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, syntaxError(err)
			}
			key, ok := kt.(string)
			if !ok {
				return nil, syntaxError(fmt.Errorf("object key is %v", kt))
			}
			field := key
			if path != "" {
				field = path + "." + key
			}
			if _, dup := obj[key]; dup {
				return nil, &DecodeError{Stage: StageSyntax, Field: field, Observed: "duplicate key", Err: fmt.Errorf("duplicate key %q", key)}
			}
			val, err := readValue(dec, field)
			if err != nil {
				return nil, err
			}
			obj[key] = val
		}
		if err := closeDelim(dec); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := readValue(dec, indexedField(path, len(arr)))
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if err := closeDelim(dec); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, syntaxError(fmt.Errorf("unexpected %q", rune(delim)))
	}
}

func closeDelim(dec *json.Decoder) error {
	if _, err := dec.Token(); err != nil {
		return syntaxError(err)
	}
	return nil
}

func syntaxError(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Stage: StageSyntax, Err: err}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
