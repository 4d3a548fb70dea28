package condition

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEnv is the environment visible to "expr:" conditions.
type exprEnv struct {
	Headers map[string]string `expr:"headers"`
	Query   map[string]string `expr:"query"`
	Path    string            `expr:"path"`
	Method  string            `expr:"method"`
	Body    any               `expr:"body"`
}

type exprNode struct {
	program *vm.Program
}

func compileExpr(p *parser, source string) (node, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, p.errorf("empty expr expression")
	}
	program, err := expr.Compile(source, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, p.errorf("expr: %v", err)
	}
	return exprNode{program: program}, nil
}

func (n exprNode) eval(ctx *Context) bool {
	env := exprEnv{
		Headers: ctx.Headers,
		Query:   ctx.Query,
		Path:    ctx.Path,
		Method:  ctx.Method,
		Body:    ctx.exprBody(),
	}
	out, err := expr.Run(n.program, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}
