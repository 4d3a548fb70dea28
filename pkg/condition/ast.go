package condition

import (
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/statemock/internal/matching"
)

// node is a compiled condition term.
type node interface {
	eval(ctx *Context) bool
}

type trueNode struct{}

func (trueNode) eval(*Context) bool { return true }

type andNode []node

func (n andNode) eval(ctx *Context) bool {
	for _, child := range n {
		if !child.eval(ctx) {
			return false
		}
	}
	return true
}

type orNode []node

func (n orNode) eval(ctx *Context) bool {
	for _, child := range n {
		if child.eval(ctx) {
			return true
		}
	}
	return false
}

type notNode struct {
	child node
}

func (n notNode) eval(ctx *Context) bool { return !n.child.eval(ctx) }

// existsNode is a bare JSONPath or XPath selector.
type existsNode struct {
	sel selector
}

func (n existsNode) eval(ctx *Context) bool {
	switch s := n.sel.(type) {
	case jsonSelector:
		return matching.HasNonNull(s.expr, ctx.Body)
	case xmlSelector:
		_, ok := s.xpath.Lookup(ctx.xml())
		return ok
	default:
		return false
	}
}

type compareNode struct {
	sel     selector
	op      operator
	literal string
}

func (n compareNode) eval(ctx *Context) bool {
	actual, ok := n.sel.value(ctx)
	if !ok {
		return false
	}
	return n.op.apply(actual, n.literal)
}

// selector resolves one request attribute to a string.
type selector interface {
	value(ctx *Context) (string, bool)
}

type headerSelector struct{ name string }

func (s headerSelector) value(ctx *Context) (string, bool) { return ctx.header(s.name) }

type querySelector struct{ name string }

func (s querySelector) value(ctx *Context) (string, bool) { return ctx.query(s.name) }

type pathSelector struct{}

func (pathSelector) value(ctx *Context) (string, bool) { return ctx.Path, true }

type methodSelector struct{}

func (methodSelector) value(ctx *Context) (string, bool) {
	return strings.ToUpper(ctx.Method), true
}

type jsonSelector struct {
	expr jp.Expr
}

func (s jsonSelector) value(ctx *Context) (string, bool) {
	v, ok := matching.LookupFirst(s.expr, ctx.Body)
	if !ok {
		return "", false
	}
	return matching.ValueString(v)
}

type xmlSelector struct {
	xpath *matching.XPath
}

func (s xmlSelector) value(ctx *Context) (string, bool) {
	return s.xpath.Lookup(ctx.xml())
}
