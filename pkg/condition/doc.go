// Package condition implements the boolean expression language used to gate
// state transitions.
//
// A condition is one of:
//
//	""                                  always true
//	headers.x-role == admin             comparison (== != > < >= <=, "=" aliases "==")
//	$.items[0]                          JSONPath selector, true when it resolves to a non-null value
//	/order/@id                          XPath selector, true when the element or attribute exists
//	AND(c, ...) / OR(c, ...) / NOT(c)   combinators, nested freely
//	expr: body.amount > 100             expr-lang expression over headers, query, path, method, body
//
// Selectors are headers.<name> or header[name] (case-insensitive),
// query.<name> or query[name], path, method, JSONPath on a JSON body and
// XPath on an XML body. Ordering operators only hold when both sides are
// numbers; == and != compare numerically when both sides are numbers and as
// strings otherwise.
//
// Evaluation never panics. A malformed condition, a missing selector value or
// a type mismatch evaluates to false.
package condition
