package stateful

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/statemock/internal/matching"
)

// idExtractor resolves a resource id from a request. It reports false when
// the id is absent or empty.
type idExtractor func(r *request) (string, bool)

// compileExtract turns a ResourceIDExtract into an idExtractor. field is the
// config path used in errors; tmpl is the owning path pattern, nil when the
// extractor is not bound to one.
func compileExtract(pattern, field string, tmpl *matching.Template, ex ResourceIDExtract) (idExtractor, error) {
	switch e := ex.(type) {
	case PathParam:
		if e.Param == "" {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".param", Message: "path parameter name is required"}
		}
		if tmpl != nil && !tmpl.HasParam(e.Param) {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".param",
				Message: fmt.Sprintf("path pattern has no {%s} placeholder", e.Param)}
		}
		return pathParamExtractor(e.Param, tmpl == nil), nil

	case Header:
		if e.Name == "" {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".name", Message: "header name is required"}
		}
		return func(r *request) (string, bool) {
			return nonEmpty(matching.HeaderValue(r.headers, e.Name))
		}, nil

	case QueryParam:
		if e.Param == "" {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".param", Message: "query parameter name is required"}
		}
		return func(r *request) (string, bool) {
			return nonEmpty(matching.QueryValue(r.query, e.Param))
		}, nil

	case JSONPath:
		if e.Path == "" {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".path", Message: "JSON path is required"}
		}
		x, err := matching.DottedPath(e.Path)
		if err != nil {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".path", Message: err.Error()}
		}
		return jsonPathExtractor(x), nil

	case Composite:
		if len(e.Extractors) == 0 {
			return nil, &ConfigError{Pattern: pattern, Field: field + ".extractors", Message: "composite extractor needs at least one extractor"}
		}
		children := make([]idExtractor, len(e.Extractors))
		for i, child := range e.Extractors {
			c, err := compileExtract(pattern, fmt.Sprintf("%s.extractors[%d]", field, i), tmpl, child)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return func(r *request) (string, bool) {
			for _, c := range children {
				if id, ok := c(r); ok {
					return id, true
				}
			}
			return "", false
		}, nil

	case nil:
		return nil, &ConfigError{Pattern: pattern, Field: field, Message: "resource id extractor is required"}

	default:
		return nil, &ConfigError{Pattern: pattern, Field: field, Message: fmt.Sprintf("unsupported extractor %T", ex)}
	}
}

// pathParamExtractor reads a captured placeholder. Without a bound pattern
// it falls back to the last path segment.
func pathParamExtractor(param string, lastSegment bool) idExtractor {
	return func(r *request) (string, bool) {
		if id, ok := r.params[param]; ok && id != "" {
			return id, true
		}
		if !lastSegment {
			return "", false
		}
		segs := matching.SplitPath(r.path)
		if len(segs) == 0 {
			return "", false
		}
		return nonEmpty(segs[len(segs)-1], true)
	}
}

func jsonPathExtractor(x jp.Expr) idExtractor {
	return func(r *request) (string, bool) {
		v, ok := matching.LookupFirst(x, r.jsonBody())
		if !ok {
			return "", false
		}
		return nonEmpty(matching.ScalarString(v))
	}
}

func nonEmpty(s string, ok bool) (string, bool) {
	return s, ok && s != ""
}
