package matching

import (
	"net/url"
)

// FlattenQuery converts parsed query values into a first-value map.
func FlattenQuery(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for name, values := range params {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

// QueryValue returns the first value of a query parameter.
func QueryValue(params url.Values, name string) (string, bool) {
	values, ok := params[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
