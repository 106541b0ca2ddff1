package blogapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/mmcdole/quill/internal/domain"
)

// statusError maps a non-2xx response onto the domain error taxonomy
func statusError(status int, body []byte) error {
	var sentinel error
	switch {
	case status == http.StatusUnauthorized:
		sentinel = domain.ErrAuthFailed
	case status == http.StatusForbidden:
		sentinel = domain.ErrPermissionDenied
	case status == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case status >= 500:
		sentinel = domain.ErrServer
	default:
		// 400, 409 and anything else the server refuses outright
		sentinel = domain.ErrConflict
	}
	return &domain.APIError{Status: status, Detail: extractDetail(body), Err: sentinel}
}

// extractDetail pulls a human readable message out of an error body.
// Accepted shapes: a bare JSON string, {"detail": "..."}, {"error": "..."},
// or a field map of strings / string arrays which are joined with spaces.
// Anything else yields an empty detail.
func extractDetail(body []byte) string {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}

	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		return joinStrings(v)
	case map[string]any:
		for _, key := range []string{"detail", "error", "message"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			switch fv := v[k].(type) {
			case string:
				parts = append(parts, fv)
			case []any:
				if s := joinStrings(fv); s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func joinStrings(items []any) string {
	var parts []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
