package stateful

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/getmockd/statemock/pkg/condition"
)

// request is the parsed form of one incoming request. It is confined to the
// goroutine handling the request.
type request struct {
	method  string
	path    string
	params  map[string]string
	headers http.Header
	query   url.Values
	body    []byte

	cond *condition.Context
}

// newRequest keeps the path percent-encoded, so matching and extraction
// see the same segments CanHandle does. A uri that does not parse is split
// at '?' instead of being rejected.
func newRequest(method, uri string, headers http.Header, body []byte) *request {
	var path, rawQuery string
	if u, err := url.Parse(uri); err == nil {
		path, rawQuery = u.EscapedPath(), u.RawQuery
	} else {
		path, rawQuery, _ = strings.Cut(uri, "?")
		rawQuery, _, _ = strings.Cut(rawQuery, "#")
	}
	if path == "" {
		path = "/"
	}
	// ParseQuery keeps the pairs it could decode.
	query, _ := url.ParseQuery(rawQuery)
	return &request{
		method:  strings.ToUpper(method),
		path:    path,
		headers: headers,
		query:   query,
		body:    body,
	}
}

// conditionContext returns the request as seen by conditions. The body is
// parsed on first use.
func (r *request) conditionContext() *condition.Context {
	if r.cond == nil {
		r.cond = condition.NewContext(r.method, r.path, r.headers, r.query, r.body)
	}
	return r.cond
}

// jsonBody returns the parsed JSON body, or nil.
func (r *request) jsonBody() any {
	return r.conditionContext().Body
}
