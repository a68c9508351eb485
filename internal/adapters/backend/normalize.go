package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedShape is returned when a response body is neither of the shapes
// the backend is known to produce.
var ErrUnexpectedShape = errors.New("unexpected response shape")

var listKeys = []string{"items", "data"}

// DecodeList accepts a bare JSON array or an object carrying the array under
// "items" or "data". Anything else is an error, never an empty list.
func DecodeList[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnexpectedShape)
	}

	switch raw[0] {
	case '[':
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return out, nil
	case '{':
		var env map[string]json.RawMessage
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		for _, k := range listKeys {
			inner, ok := env[k]
			if !ok {
				continue
			}
			inner = bytes.TrimSpace(inner)
			if len(inner) == 0 || inner[0] != '[' {
				return nil, fmt.Errorf("%w: %q is not an array", ErrUnexpectedShape, k)
			}
			var out []T
			if err := json.Unmarshal(inner, &out); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
			}
			return out, nil
		}
		return nil, fmt.Errorf("%w: object without items/data", ErrUnexpectedShape)
	default:
		return nil, fmt.Errorf("%w: not an array or object", ErrUnexpectedShape)
	}
}

// DecodeOne accepts an object, optionally wrapped as {"data": {...}}.
func DecodeOne[T any](raw []byte) (T, error) {
	var zero T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return zero, fmt.Errorf("%w: expected object", ErrUnexpectedShape)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if inner, ok := env["data"]; ok {
		inner = bytes.TrimSpace(inner)
		if len(inner) > 0 && inner[0] == '{' {
			raw = inner
		}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return out, nil
}
