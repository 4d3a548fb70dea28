package matching

import (
	"net/http"
	"strings"
)

// FlattenHeaders converts a header multimap into a map keyed by lower-case
// header name holding the first value of each header.
func FlattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		key := strings.ToLower(name)
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = values[0]
	}
	return out
}

// HeaderValue looks up a header by name, case-insensitively.
// Unlike http.Header.Get it also finds keys that were inserted without
// canonicalization.
func HeaderValue(headers http.Header, name string) (string, bool) {
	if headers == nil || name == "" {
		return "", false
	}
	if values, ok := headers[http.CanonicalHeaderKey(name)]; ok && len(values) > 0 {
		return values[0], true
	}
	for key, values := range headers {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}
