package condition

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getmockd/statemock/pkg/logging"
)

// Condition is a compiled condition. A Condition that failed to compile
// keeps its error and always evaluates to false.
type Condition struct {
	source string
	root   node
	err    error
}

// Compile parses source into a Condition. The result is never nil; check
// Err for syntax problems.
func Compile(source string) (c *Condition) {
	c = &Condition{source: source}
	defer func() {
		if r := recover(); r != nil {
			c.root = nil
			c.err = &SyntaxError{Condition: source, Msg: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	if strings.TrimSpace(source) == "" {
		c.root = trueNode{}
		return c
	}
	p := &parser{src: source}
	c.root, c.err = p.parse(source)
	return c
}

// String returns the condition source.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Err returns the compile error, if any.
func (c *Condition) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// IsEmpty reports whether the condition is the always-true empty condition.
func (c *Condition) IsEmpty() bool { return c == nil || strings.TrimSpace(c.source) == "" }

// Eval evaluates the condition. Compile errors and runtime failures yield false.
func (c *Condition) Eval(ctx *Context) bool {
	ok, _ := c.Evaluate(ctx)
	return ok
}

// Evaluate is Eval with the reason for a forced false result.
// A nil Condition behaves like the empty condition.
func (c *Condition) Evaluate(ctx *Context) (result bool, err error) {
	if c == nil {
		return true, nil
	}
	if c.err != nil {
		return false, c.err
	}
	if ctx == nil {
		ctx = &Context{}
	}
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("condition %q: evaluation panicked: %v", c.source, r)
		}
	}()
	return c.root.eval(ctx), nil
}

const maxCachedConditions = 4096

var (
	cache     sync.Map // string -> *Condition
	cacheSize atomic.Int64
)

// Cached returns the compiled form of source, compiling it at most once while
// the cache has room.
func Cached(source string) *Condition {
	if v, ok := cache.Load(source); ok {
		return v.(*Condition)
	}
	c := Compile(source)
	if cacheSize.Load() >= maxCachedConditions {
		return c
	}
	if v, loaded := cache.LoadOrStore(source, c); loaded {
		return v.(*Condition)
	}
	cacheSize.Add(1)
	return c
}

// Evaluate compiles (through the cache) and evaluates source against ctx.
func Evaluate(source string, ctx *Context) bool {
	return Cached(source).Eval(ctx)
}

// Evaluator evaluates conditions and logs why a condition was forced false.
type Evaluator struct {
	log *slog.Logger
}

// NewEvaluator creates an Evaluator. A nil logger discards output.
func NewEvaluator(log *slog.Logger) *Evaluator {
	if log == nil {
		log = logging.Nop()
	}
	return &Evaluator{log: log}
}

// Evaluate evaluates source against ctx.
func (e *Evaluator) Evaluate(source string, ctx *Context) bool {
	return e.Eval(Cached(source), ctx)
}

// Eval evaluates a compiled condition against ctx.
func (e *Evaluator) Eval(c *Condition, ctx *Context) bool {
	ok, err := c.Evaluate(ctx)
	if err != nil {
		e.log.Debug("condition evaluated to false", "condition", c.String(), "error", err)
	}
	return ok
}
