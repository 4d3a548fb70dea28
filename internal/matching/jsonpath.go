package matching

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

var errEmptySegment = errors.New("json path has an empty segment")

// ParseJSONBody decodes a request body for JSONPath lookups.
// Numbers are kept as json.Number so large integer identifiers keep their
// exact textual form. Returns false for empty or invalid JSON,
// including trailing garbage after the first value.
func ParseJSONBody(body []byte) (any, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return data, true
}

// CompileJSONPath parses a JSONPath expression such as "$.user.id" or
// "$.items[0]".
func CompileJSONPath(path string) (jp.Expr, error) {
	return jp.ParseString(strings.TrimSpace(path))
}

// DottedPath converts a dotted path ("user.id", "items.0.sku", optionally
// prefixed with "$.") into a JSONPath expression. Numeric segments index
// arrays. Paths containing bracket syntax are handed to the JSONPath parser
// unchanged.
func DottedPath(path string) (jp.Expr, error) {
	path = strings.TrimSpace(path)
	if strings.ContainsAny(path, "[]*") || strings.HasPrefix(path, "$..") {
		if !strings.HasPrefix(path, "$") {
			path = "$." + path
		}
		return jp.ParseString(path)
	}

	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")

	x := jp.R()
	if path == "" {
		return x, nil
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, errEmptySegment
		}
		if n, err := strconv.Atoi(seg); err == nil && n >= 0 {
			x = x.N(n)
			continue
		}
		x = x.C(seg)
	}
	return x, nil
}

// LookupFirst returns the first value matched by x in data.
// A JSON null counts as a match with a nil value.
func LookupFirst(x jp.Expr, data any) (any, bool) {
	if x == nil || data == nil {
		return nil, false
	}
	results := x.Get(data)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// HasNonNull reports whether x resolves to at least one non-null value.
func HasNonNull(x jp.Expr, data any) bool {
	if x == nil || data == nil {
		return false
	}
	for _, v := range x.Get(data) {
		if v != nil {
			return true
		}
	}
	return false
}

// ScalarString converts a scalar JSON value (string, number, bool) into its
// textual form. Objects, arrays and null are not scalars.
func ScalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int:
		return strconv.Itoa(val), true
	default:
		return "", false
	}
}

// ValueString converts any non-null JSON value into a string. Scalars use
// ScalarString; objects and arrays are rendered as compact JSON.
func ValueString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if s, ok := ScalarString(v); ok {
		return s, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// ToFloat64 attempts to convert a value to float64.
// Strings are parsed, so "42" and json.Number("42") both convert.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
