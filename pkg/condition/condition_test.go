package condition

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonContext(t *testing.T, body string) *Context {
	t.Helper()
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Role", "admin")
	h.Set("X-Retry", "3")
	q := url.Values{"page": {"2"}, "sort": {"desc"}}
	return NewContext("post", "/orders/123", h, q, []byte(body))
}

func TestEvaluate_Comparisons(t *testing.T) {
	ctx := jsonContext(t, `{"value":150,"status":"pending","paid":true,"items":[{"sku":"a"}],"empty":null,"code":"007"}`)

	tests := []struct {
		name      string
		condition string
		want      bool
	}{
		{"empty is true", "", true},
		{"whitespace is true", "   ", true},
		{"header equals", "headers.x-role == admin", true},
		{"header case-insensitive name", "headers.X-ROLE == admin", true},
		{"header value is case-sensitive", "headers.x-role == Admin", false},
		{"header not equals", "headers.x-role != guest", true},
		{"header numeric", "headers.x-retry >= 3", true},
		{"missing header", "headers.x-missing == admin", false},
		{"missing header not equals", "headers.x-missing != admin", false},
		{"query equals", "query.sort == desc", true},
		{"query numeric", "query.page > 1", true},
		{"path", "path == /orders/123", true},
		{"method normalized", "method == POST", true},
		{"method literal lower-case", "method == post", true},
		{"json greater", "$.value > 100", true},
		{"json less", "$.value < 100", false},
		{"json le", "$.value <= 150", true},
		{"json string", `$.status == "pending"`, true},
		{"json single quoted", "$.status == 'pending'", true},
		{"json bool", "$.paid == true", true},
		{"numeric equality ignores formatting", "$.value == 150.0", true},
		{"numeric string equality", "$.code == 7", true},
		{"ordering needs numbers", "$.status > 1", false},
		{"ordering with word literal", "$.value > abc", false},
		{"bare json path present", "$.items[0]", true},
		{"bare json path missing", "$.items[3]", false},
		{"bare json path null", "$.empty", false},
		{"legacy header", "header[X-Role]=admin", true},
		{"legacy query", "query[sort]=desc", true},
		{"legacy method", "method=POST", true},
		{"and", "AND(headers.x-role == admin, $.value > 100)", true},
		{"and one false", "AND(headers.x-role == admin, $.value > 1000)", false},
		{"or", "OR($.value > 1000, query.sort == desc)", true},
		{"not", "NOT(query.sort == asc)", true},
		{"single arg and", "AND(method == POST)", true},
		{"nested", "AND(OR(method == GET, method == POST), NOT(AND($.paid == false)))", true},
		{"space before paren", "NOT (method == GET)", true},
		{"quoted comma in arg", `OR(headers.x-role == "a,b", method == POST)`, true},
		{"quoted paren in arg", `AND(headers.x-role != "x)", method == POST)`, true},
		{"expr", "expr: body.value > 100 && headers['x-role'] == 'admin'", true},
		{"expr query and method", "expr: query.page == '2' && method == 'POST'", true},
		{"expr false", "expr: body.value < 100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.condition, ctx))
		})
	}
}

func TestEvaluate_MalformedIsFalse(t *testing.T) {
	ctx := jsonContext(t, `{"value":1}`)

	malformed := []string{
		"AND(",
		"AND()",
		"OR()",
		"NOT()",
		"NOT(method == GET, method == POST)",
		"AND(method == POST,)",
		"and(method == POST)",
		"headers.x-role ==",
		"== admin",
		"headers. == admin",
		"cookie.session == x",
		"method",
		"headers.x-role",
		`headers.x-role == "admin`,
		"$.value[ > 1",
		"/order[ == 1",
		"expr:",
		"expr: body.value +",
		"expr: 1 + 2",
		"NOT(method == POST",
		"AND(method == POST))",
		")(",
	}

	for _, cond := range malformed {
		t.Run(cond, func(t *testing.T) {
			c := Compile(cond)
			assert.Error(t, c.Err())
			assert.False(t, c.Eval(ctx))

			var syn *SyntaxError
			assert.True(t, errors.As(c.Err(), &syn))
		})
	}
}

func TestEvaluate_AbsentBody(t *testing.T) {
	ctx := NewContext("GET", "/orders/1", nil, nil, nil)

	assert.False(t, Evaluate("$.value > 1", ctx))
	assert.False(t, Evaluate("$.value", ctx))
	assert.False(t, Evaluate("/order/status == x", ctx))
	assert.False(t, Evaluate("expr: body.value > 1", ctx))
	assert.True(t, Evaluate("NOT($.value)", ctx))
	assert.True(t, Evaluate("method == GET", ctx))
}

func TestEvaluate_InvalidJSONBody(t *testing.T) {
	ctx := NewContext("POST", "/", nil, nil, []byte(`{"value":`))
	assert.Nil(t, ctx.Body)
	assert.False(t, Evaluate("$.value", ctx))
}

func TestEvaluate_XML(t *testing.T) {
	body := `<order id="o-1"><status>shipped</status><total>42.5</total></order>`
	ctx := NewContext("POST", "/orders", nil, nil, []byte(body))

	tests := []struct {
		condition string
		want      bool
	}{
		{"/order/status", true},
		{"/order/refund", false},
		{"/order/status == shipped", true},
		{"/order/@id == o-1", true},
		{"/order/total > 40", true},
		{"AND(/order/status, /order/@id != o-2)", true},
	}
	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.condition, ctx))
		})
	}
}

func TestCompile_ReusesCachedCondition(t *testing.T) {
	a := Cached("method == GET")
	b := Cached("method == GET")
	assert.Same(t, a, b)
}

func TestCondition_NilAndEmpty(t *testing.T) {
	var c *Condition
	assert.True(t, c.Eval(nil))
	assert.True(t, c.IsEmpty())
	assert.NoError(t, c.Err())

	empty := Compile("")
	require.NoError(t, empty.Err())
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.Eval(nil))
}

func TestEvaluator_LogsForcedFalse(t *testing.T) {
	e := NewEvaluator(nil)
	assert.False(t, e.Evaluate("AND(", &Context{}))
	assert.True(t, e.Evaluate("", &Context{}))
}
