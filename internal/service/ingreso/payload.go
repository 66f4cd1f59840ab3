// internal/service/ingreso/payload.go
package ingreso

import (
	"encoding/json"
	"mime"
	"net/url"
	"strings"

	"ledroitcheck-service/internal/domain/handoff"
	xerrors "ledroitcheck-service/internal/pkg/errors"
)

// DecodeBody turns a request body into a generic JSON value. Form bodies
// yield an object holding the submitted respuestaLMaster and data fields.
// Bodies that are not valid JSON are kept as a string.
func DecodeBody(contentType string, body []byte) any {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil
		}
		out := map[string]any{}
		for _, key := range []string{handoff.FieldName, "data"} {
			if v := values.Get(key); v != "" {
				out[key] = v
			}
		}
		return out
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// Unwrap locates the handoff payload inside a decoded body. A body with a
// top-level "success" key is the payload itself; otherwise respuestaLMaster,
// then data, then the body. JSON strings are decoded once more.
func Unwrap(body any) (map[string]any, error) {
	payload := decodeString(body)

	if m, ok := payload.(map[string]any); ok {
		if _, direct := m["success"]; !direct {
			switch {
			case m[handoff.FieldName] != nil:
				payload = m[handoff.FieldName]
			case m["data"] != nil:
				payload = m["data"]
			}
		}
	}

	payload = decodeString(payload)
	out, ok := payload.(map[string]any)
	if !ok || out == nil {
		return nil, xerrors.ErrInvalidBody
	}
	return out, nil
}

// Validate requires a truthy success flag and a non-empty data object, and
// returns the data object.
func Validate(payload map[string]any) (map[string]any, error) {
	if !truthy(payload["success"]) {
		return nil, xerrors.ErrInvalidStructure
	}
	data, ok := payload["data"].(map[string]any)
	if !ok || len(data) == 0 {
		return nil, xerrors.ErrInvalidStructure
	}
	return data, nil
}

func decodeString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &decoded); err != nil {
		return v
	}
	return decoded
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
