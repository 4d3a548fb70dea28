package matching

import (
	"errors"
	"fmt"
	"strings"
)

// Template is a parsed path template such as "/orders/{id}/items/{itemId}".
type Template struct {
	raw      string
	segments []string
	params   []string
	static   int
}

// ParseTemplate parses and validates a path template.
// Placeholders must occupy a whole segment, have a non-empty name and be unique.
func ParseTemplate(pattern string) (*Template, error) {
	if pattern == "" {
		return nil, errors.New("path pattern cannot be empty")
	}
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("path pattern %q must start with /", pattern)
	}

	t := &Template{raw: pattern, segments: SplitPath(pattern)}
	seen := make(map[string]bool)

	for i, seg := range t.segments {
		if seg == "" {
			return nil, fmt.Errorf("path pattern %q has an empty segment at position %d", pattern, i)
		}
		name, isParam := placeholderName(seg)
		if !isParam {
			if strings.ContainsAny(seg, "{}") {
				return nil, fmt.Errorf("path pattern %q: placeholder %q must span the whole segment", pattern, seg)
			}
			t.static++
			continue
		}
		if name == "" || strings.ContainsAny(name, "{}") {
			return nil, fmt.Errorf("path pattern %q: invalid placeholder %q at position %d", pattern, seg, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("path pattern %q: duplicate placeholder %q", pattern, name)
		}
		seen[name] = true
		t.params = append(t.params, name)
	}

	return t, nil
}

// String returns the template as it was registered.
func (t *Template) String() string { return t.raw }

// Params returns the placeholder names in path order.
func (t *Template) Params() []string {
	out := make([]string, len(t.params))
	copy(out, t.params)
	return out
}

// HasParam reports whether the template declares the named placeholder.
func (t *Template) HasParam(name string) bool {
	for _, p := range t.params {
		if p == name {
			return true
		}
	}
	return false
}

// StaticSegments returns the number of literal segments. More static
// segments means a more specific template.
func (t *Template) StaticSegments() int { return t.static }

// Equal reports whether two templates describe the same set of paths
// with the same placeholder names.
func (t *Template) Equal(other *Template) bool {
	if other == nil || len(t.segments) != len(other.segments) {
		return false
	}
	for i := range t.segments {
		if t.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Match matches a concrete path against the template.
// It returns the captured placeholder values when every static segment
// matches exactly and the segment counts are equal.
func (t *Template) Match(path string) (map[string]string, bool) {
	parts := SplitPath(path)
	if len(parts) != len(t.segments) {
		return nil, false
	}

	params := make(map[string]string, len(t.params))
	for i, seg := range t.segments {
		if name, isParam := placeholderName(seg); isParam {
			// A placeholder captures exactly one non-empty segment.
			if parts[i] == "" {
				return nil, false
			}
			params[name] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// MatchTemplate is a convenience wrapper that parses pattern and matches path.
// An invalid pattern never matches.
func MatchTemplate(pattern, path string) (map[string]string, bool) {
	t, err := ParseTemplate(pattern)
	if err != nil {
		return nil, false
	}
	return t.Match(path)
}

// SplitPath splits a path into segments, ignoring leading and trailing
// slashes. The root path yields no segments.
func SplitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// NormalizePath returns path with a single leading slash and no trailing slash.
func NormalizePath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// placeholderName returns the name inside a "{name}" segment.
func placeholderName(seg string) (string, bool) {
	if len(seg) >= 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
		return strings.TrimSpace(seg[1 : len(seg)-1]), true
	}
	return "", false
}
