// Package matching provides the request matching primitives used by the
// stateful engine and the condition evaluator.
//
// It covers:
//
//   - Path templates: "/orders/{id}" style patterns where each placeholder
//     captures exactly one path segment
//   - JSON lookups: JSONPath expressions and dotted paths evaluated against a
//     decoded request body
//   - XML lookups: XPath-style selectors evaluated against an XML request body
//   - Header and query helpers that flatten multi-valued maps into first-value
//     lookups
//
// Every function in this package is pure and safe for concurrent use. Lookups
// never panic on malformed input; they report a miss instead.
package matching
