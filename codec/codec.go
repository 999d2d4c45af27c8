// Package codec defines the payload encodings carried by a pipe frame.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// A Codec converts values of type T to and from the body of a frame.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSON is a Codec that uses encoding/json. Unknown fields are rejected, and
// trailing data after the first value is an error.
type JSON[T any] struct{}

// Encode implements part of [Codec].
func (JSON[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}

// Decode implements part of [Codec].
func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return v, fmt.Errorf("decode json: trailing data after value")
	}
	return v, nil
}

// YAML is a Codec that uses gopkg.in/yaml.v3. Unknown fields are rejected.
type YAML[T any] struct{}

// Encode implements part of [Codec].
func (YAML[T]) Encode(v T) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return data, nil
}

// Decode implements part of [Codec].
func (YAML[T]) Decode(data []byte) (T, error) {
	var v T
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decode yaml: %w", err)
	}
	return v, nil
}

// ByName returns the codec with the given name, "json" or "yaml".
func ByName[T any](name string) (Codec[T], error) {
	switch name {
	case "", "json":
		return JSON[T]{}, nil
	case "yaml":
		return YAML[T]{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
