package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps the request body size read by DecodeObject.
const MaxBodyBytes = 1 << 20

var (
	ErrInvalidJSON = errors.New("invalid JSON in request body")
	ErrNotObject   = errors.New("request body must be a JSON object")
	ErrTooLarge    = errors.New("request body too large")
)

// DecodeObject reads the body as a single JSON object. An absent or blank
// body decodes to an empty object. Numbers are kept as json.Number so they
// are forwarded exactly as sent.
func DecodeObject(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return nil, ErrTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, ErrInvalidJSON
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrInvalidJSON
	}

	obj, ok := v.(map[string]any)
	if !ok {
		if v == nil {
			// A literal null is treated like an absent body.
			return map[string]any{}, nil
		}
		return nil, ErrNotObject
	}
	return obj, nil
}
