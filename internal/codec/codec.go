// Package codec encodes setting values to the opaque strings kept in the
// key-value store and decodes them back, with a decode-or-default policy for
// values written by older schema versions.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
)

// Codec converts a typed value to and from its persisted string form.
type Codec[T any] interface {
	Encode(v T) (string, error)
	Decode(raw string) (T, error)
}

// DecodeError reports a persisted value that does not fit the expected shape.
type DecodeError struct {
	Type string
	Raw  string
	Err  error
}

func (e *DecodeError) Error() string {
	raw := e.Raw
	if len(raw) > 64 {
		raw = raw[:64] + "..."
	}
	return fmt.Sprintf("decoding %s from %q: %v", e.Type, raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeOrDefault decodes raw with c and returns def when decoding fails.
// It never fails: the error is logged to log, or to slog.Default() when log
// is nil, and the corrupt value is discarded.
func DecodeOrDefault[T any](log *slog.Logger, c Codec[T], key, raw string, def T) T {
	v, err := c.Decode(raw)
	if err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("malformed persisted value, using default", "key", key, "error", err)
		return def
	}
	return v
}

type boolCodec struct{}

// Bool encodes booleans as "true" / "false".
var Bool Codec[bool] = boolCodec{}

func (boolCodec) Encode(v bool) (string, error) { return strconv.FormatBool(v), nil }

func (boolCodec) Decode(raw string) (bool, error) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &DecodeError{Type: "bool", Raw: raw, Err: err}
	}
	return v, nil
}

type intCodec struct{}

// Int encodes integers in base 10.
var Int Codec[int] = intCodec{}

func (intCodec) Encode(v int) (string, error) { return strconv.Itoa(v), nil }

func (intCodec) Decode(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &DecodeError{Type: "int", Raw: raw, Err: err}
	}
	return v, nil
}

type floatCodec struct{}

// Float encodes float64 values with the shortest representation that
// round-trips exactly.
var Float Codec[float64] = floatCodec{}

func (floatCodec) Encode(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("encoding float: non-finite value %v", v)
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (floatCodec) Decode(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &DecodeError{Type: "float", Raw: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &DecodeError{Type: "float", Raw: raw, Err: fmt.Errorf("non-finite value")}
	}
	return v, nil
}

type stringCodec struct{}

// String stores strings verbatim.
var String Codec[string] = stringCodec{}

func (stringCodec) Encode(v string) (string, error) { return v, nil }
func (stringCodec) Decode(raw string) (string, error) { return raw, nil }

type stringSetCodec struct{}

// StringSet encodes a set of strings as a sorted JSON array.
var StringSet Codec[[]string] = stringSetCodec{}

func (stringSetCodec) Encode(v []string) (string, error) {
	b, err := json.Marshal(NormalizeSet(v))
	if err != nil {
		return "", fmt.Errorf("encoding string set: %w", err)
	}
	return string(b), nil
}

func (stringSetCodec) Decode(raw string) ([]string, error) {
	var v []string
	if err := strictUnmarshal(raw, &v); err != nil {
		return nil, &DecodeError{Type: "string set", Raw: raw, Err: err}
	}
	return NormalizeSet(v), nil
}

// NormalizeSet returns a sorted copy of v without duplicates. The result is
// never nil, so an empty set always encodes as "[]".
func NormalizeSet(v []string) []string {
	out := make([]string, 0, len(v))
	out = append(out, v...)
	slices.Sort(out)
	return slices.Compact(out)
}

// JSONCodec stores a composite value as a JSON document.
type JSONCodec[T any] struct {
	name string
}

// JSON returns a codec for composite values; name is used in errors.
func JSON[T any](name string) JSONCodec[T] {
	return JSONCodec[T]{name: name}
}

func (c JSONCodec[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", c.name, err)
	}
	return string(b), nil
}

func (c JSONCodec[T]) Decode(raw string) (T, error) {
	var v T
	if err := strictUnmarshal(raw, &v); err != nil {
		var zero T
		return zero, &DecodeError{Type: c.name, Raw: raw, Err: err}
	}
	return v, nil
}

// strictUnmarshal rejects empty input, JSON null and trailing data, so that a
// truncated or concatenated document never decodes into a half-filled value.
func strictUnmarshal(raw string, v any) error {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return fmt.Errorf("empty document")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("null document")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after document")
	}
	return nil
}
