package condition

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/getmockd/statemock/internal/matching"
)

// Context is the request view a condition is evaluated against.
// Build it with NewContext; the zero value is an empty request.
type Context struct {
	Method  string
	Path    string
	Headers map[string]string // keys are lower-case
	Query   map[string]string
	Body    any // parsed JSON body, numbers as json.Number; nil when absent or not JSON
	RawBody []byte

	xmlOnce sync.Once
	xmlDoc  *etree.Document

	plainOnce sync.Once
	plainBody any
}

// NewContext builds a Context from the parts of an HTTP request.
// The body is parsed as JSON when possible; XML is parsed on first use.
func NewContext(method, path string, headers http.Header, query url.Values, body []byte) *Context {
	c := &Context{
		Method:  strings.ToUpper(method),
		Path:    path,
		Headers: matching.FlattenHeaders(headers),
		Query:   matching.FlattenQuery(query),
		RawBody: body,
	}
	if data, ok := matching.ParseJSONBody(body); ok {
		c.Body = data
	}
	return c
}

func (c *Context) header(name string) (string, bool) {
	v, ok := c.Headers[strings.ToLower(name)]
	return v, ok
}

func (c *Context) query(name string) (string, bool) {
	v, ok := c.Query[name]
	return v, ok
}

func (c *Context) xml() *etree.Document {
	c.xmlOnce.Do(func() {
		if doc, ok := matching.ParseXMLBody(c.RawBody); ok {
			c.xmlDoc = doc
		}
	})
	return c.xmlDoc
}

// exprBody returns the body with json.Number values converted to int64 or
// float64 so expr-lang arithmetic works on them.
func (c *Context) exprBody() any {
	c.plainOnce.Do(func() {
		c.plainBody = plainJSON(c.Body)
	})
	return c.plainBody
}

func plainJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plainJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainJSON(item)
		}
		return out
	default:
		return v
	}
}
