package condition

import (
	"fmt"
	"strings"

	"github.com/getmockd/statemock/internal/matching"
)

// SyntaxError reports a condition that could not be compiled.
type SyntaxError struct {
	Condition string
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Condition, e.Msg)
}

const exprPrefix = "expr:"

type parser struct {
	src string
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Condition: p.src, Msg: fmt.Sprintf(format, args...)}
}

// parse compiles a single term. Empty terms are only legal at the top level
// and are handled by the caller.
func (p *parser) parse(term string) (node, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, p.errorf("empty expression")
	}

	if rest, ok := strings.CutPrefix(term, exprPrefix); ok {
		return compileExpr(p, rest)
	}

	if name, inner, ok := splitCall(term); ok {
		args, err := p.splitArgs(inner)
		if err != nil {
			return nil, err
		}
		return p.combinator(name, args)
	}

	if idx, tok, op := findOperator(term); idx >= 0 {
		return p.comparison(term[:idx], op, term[idx+len(tok):])
	}

	sel, err := p.selector(term)
	if err != nil {
		return nil, err
	}
	switch sel.(type) {
	case jsonSelector, xmlSelector:
		return existsNode{sel: sel}, nil
	default:
		return nil, p.errorf("selector %q needs an operator", term)
	}
}

func (p *parser) combinator(name string, args []string) (node, error) {
	children := make([]node, 0, len(args))
	for _, arg := range args {
		child, err := p.parse(arg)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	switch name {
	case "AND":
		if len(children) == 0 {
			return nil, p.errorf("AND needs at least one argument")
		}
		return andNode(children), nil
	case "OR":
		if len(children) == 0 {
			return nil, p.errorf("OR needs at least one argument")
		}
		return orNode(children), nil
	default:
		if len(children) != 1 {
			return nil, p.errorf("NOT takes exactly one argument, got %d", len(children))
		}
		return notNode{child: children[0]}, nil
	}
}

func (p *parser) comparison(lhs string, op operator, rhs string) (node, error) {
	sel, err := p.selector(strings.TrimSpace(lhs))
	if err != nil {
		return nil, err
	}
	literal, err := p.literal(strings.TrimSpace(rhs))
	if err != nil {
		return nil, err
	}
	if _, ok := sel.(methodSelector); ok {
		literal = strings.ToUpper(literal)
	}
	return compareNode{sel: sel, op: op, literal: literal}, nil
}

func (p *parser) selector(s string) (selector, error) {
	switch {
	case s == "path":
		return pathSelector{}, nil
	case s == "method":
		return methodSelector{}, nil
	case strings.HasPrefix(s, "headers."):
		return p.named(s, "headers.", "", func(n string) selector { return headerSelector{name: n} })
	case strings.HasPrefix(s, "query."):
		return p.named(s, "query.", "", func(n string) selector { return querySelector{name: n} })
	case strings.HasPrefix(s, "header["):
		return p.named(s, "header[", "]", func(n string) selector { return headerSelector{name: n} })
	case strings.HasPrefix(s, "query["):
		return p.named(s, "query[", "]", func(n string) selector { return querySelector{name: n} })
	case strings.HasPrefix(s, "$"):
		x, err := matching.CompileJSONPath(s)
		if err != nil {
			return nil, p.errorf("invalid JSONPath %q: %v", s, err)
		}
		return jsonSelector{expr: x}, nil
	case strings.HasPrefix(s, "/"):
		x, err := matching.CompileXPath(s)
		if err != nil {
			return nil, p.errorf("invalid XPath %q: %v", s, err)
		}
		return xmlSelector{xpath: x}, nil
	default:
		return nil, p.errorf("unknown selector %q", s)
	}
}

func (p *parser) named(s, prefix, suffix string, build func(string) selector) (selector, error) {
	name := strings.TrimPrefix(s, prefix)
	if suffix != "" {
		var ok bool
		if name, ok = strings.CutSuffix(name, suffix); !ok {
			return nil, p.errorf("selector %q is missing %q", s, suffix)
		}
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t[]") {
		return nil, p.errorf("selector %q has an invalid name", s)
	}
	return build(name), nil
}

func (p *parser) literal(s string) (string, error) {
	if s == "" {
		return "", p.errorf("missing value after operator")
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		if s[len(s)-1] != s[0] {
			return "", p.errorf("unterminated quoted value %s", s)
		}
		return s[1 : len(s)-1], nil
	}
	if strings.ContainsAny(s, `"'`) {
		return "", p.errorf("stray quote in value %s", s)
	}
	return s, nil
}

// splitCall recognizes NAME(...) where the parenthesis opened after NAME
// closes at the very end of term.
func splitCall(term string) (name, inner string, ok bool) {
	for _, kw := range [...]string{"AND", "OR", "NOT"} {
		rest, found := strings.CutPrefix(term, kw)
		if !found {
			continue
		}
		rest = strings.TrimLeft(rest, " \t")
		if !strings.HasPrefix(rest, "(") {
			continue
		}
		open := len(term) - len(rest)
		if closeIdx := matchingParen(term, open); closeIdx == len(term)-1 {
			return kw, term[open+1 : closeIdx], true
		}
	}
	return "", "", false
}

// matchingParen returns the index of the parenthesis closing the one at
// open, or -1. Parentheses inside quotes are ignored.
func matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits the inside of a call on top-level commas.
func (p *parser) splitArgs(inner string) ([]string, error) {
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}
	var (
		args  []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, p.errorf("unbalanced %q", c)
			}
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 || depth != 0 {
		return nil, p.errorf("unbalanced arguments")
	}
	return append(args, inner[start:]), nil
}

// findOperator returns the position of the leftmost comparison operator
// outside quotes, brackets and parentheses.
func findOperator(term string) (int, string, operator) {
	var (
		depth int
		quote byte
	)
	for i := 0; i < len(term); i++ {
		c := term[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
			continue
		case '(', '[':
			depth++
			continue
		case ')', ']':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, t := range operatorTokens {
			if strings.HasPrefix(term[i:], t.token) {
				return i, t.token, t.op
			}
		}
	}
	return -1, "", 0
}
