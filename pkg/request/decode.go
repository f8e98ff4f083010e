package request

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the `{statusCode, message, data}` wrapper some backends put around payloads.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    json.RawMessage `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// DecodeJSON decodes body into T, unwrapping a `data` envelope when present.
// This is the single place response shapes are adapted.
func DecodeJSON[T any](body []byte) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return out, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			if err := json.Unmarshal(env.Data, &out); err != nil {
				return out, fmt.Errorf("failed to decode data envelope: %w", err)
			}
			return out, nil
		}
	}

	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
