package stateful

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/statemock/internal/matching"
	"github.com/getmockd/statemock/pkg/condition"
)

// route is a registered config in compiled form. Routes are immutable once
// published in a routeTable.
type route struct {
	pattern  string
	tmpl     *matching.Template
	config   StatefulConfig
	extract  idExtractor
	triggers []trigger
	order    int
}

// trigger is a TransitionTrigger with its method normalized and its path
// and condition compiled. A nil tmpl matches every path.
type trigger struct {
	TransitionTrigger
	method string
	tmpl   *matching.Template
	cond   *condition.Condition
}

// compileRoute validates cfg and compiles it for pattern. Conditions that
// fail to compile do not reject the config; they are returned as warnings
// and evaluate to false at request time.
func compileRoute(pattern string, cfg StatefulConfig) (*route, []error, error) {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Pattern: pattern, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	tmpl, err := matching.ParseTemplate(pattern)
	if err != nil {
		return nil, nil, &ConfigError{Pattern: pattern, Field: "pattern", Message: err.Error()}
	}

	cfg = copyConfig(cfg)
	r := &route{pattern: pattern, tmpl: tmpl, config: cfg}

	if strings.TrimSpace(cfg.ResourceType) == "" {
		fail("resourceType", "resource type is required")
	}

	if r.extract, err = compileExtract(pattern, "resourceIdExtract", tmpl, cfg.ResourceIDExtract); err != nil {
		errs = append(errs, err)
	}

	if _, ok := cfg.StateResponses[InitialState]; !ok {
		fail("stateResponses", "missing required %q state", InitialState)
	}
	for _, name := range stateNames(cfg.StateResponses) {
		if name == "" {
			fail("stateResponses", "state name cannot be empty")
			continue
		}
		if code := cfg.StateResponses[name].StatusCode; code != 0 && (code < 100 || code > 599) {
			fail("stateResponses."+name+".statusCode", "invalid status code %d", code)
		}
	}

	var warnings []error
	r.triggers = make([]trigger, 0, len(cfg.Transitions))
	for i, t := range cfg.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)

		method := strings.ToUpper(strings.TrimSpace(t.Method))
		if method == "" || strings.ContainsAny(method, " \t") {
			fail(field+".method", "invalid method %q", t.Method)
		}

		if t.PathPattern == "" {
			t.PathPattern = pattern
		} else if tt, err := matching.ParseTemplate(t.PathPattern); err != nil {
			fail(field+".path", "%v", err)
		} else if !tt.Equal(tmpl) {
			fail(field+".path", "path %q must match the config pattern %q", t.PathPattern, pattern)
		}

		if _, ok := cfg.StateResponses[t.FromState]; !ok {
			fail(field+".from", "unknown state %q", t.FromState)
		}
		if _, ok := cfg.StateResponses[t.ToState]; !ok {
			fail(field+".to", "unknown state %q", t.ToState)
		}

		cond := condition.Cached(t.Condition)
		if cond.Err() != nil {
			warnings = append(warnings, fmt.Errorf("%s.condition: %w", field, cond.Err()))
		}

		r.triggers = append(r.triggers, trigger{TransitionTrigger: t, method: method, tmpl: tmpl, cond: cond})
	}

	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return r, warnings, nil
}

// info summarizes the route; resources is the number of tracked resources.
func (r *route) info(resources int) ConfigInfo {
	return ConfigInfo{
		Pattern:      r.pattern,
		ResourceType: r.config.ResourceType,
		States:       stateNames(r.config.StateResponses),
		Transitions:  len(r.triggers),
		Resources:    resources,
	}
}

// routeTable is an immutable snapshot of the registered routes, ordered by
// match precedence: more static segments first, then registration order.
type routeTable struct {
	routes    []*route
	byPattern map[string]*route
}

func (t *routeTable) match(path string) (*route, map[string]string) {
	if t == nil {
		return nil, nil
	}
	for _, r := range t.routes {
		if params, ok := r.tmpl.Match(path); ok {
			return r, params
		}
	}
	return nil, nil
}

func (t *routeTable) lookup(pattern string) (*route, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.byPattern[pattern]
	return r, ok
}
