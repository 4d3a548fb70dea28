package stateful

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/getmockd/statemock/internal/matching"
	"github.com/getmockd/statemock/pkg/condition"
)

const stubScopePrefix = "stub:"

func isStubScope(scope string) bool { return strings.HasPrefix(scope, stubScopePrefix) }

// StubStateMachine is a state machine attached to an individual mock stub
// rather than to a registered config. Stub resources are tracked per
// resource type.
type StubStateMachine struct {
	ResourceType string
	// PathPattern binds PathParam extraction. When empty, PathParam uses the
	// last path segment.
	PathPattern       string
	ResourceIDExtract ResourceIDExtract
	// InitialState defaults to InitialState.
	InitialState string
	Transitions  []TransitionTrigger
}

// ProcessStubState advances a stub's state machine for one request and
// reports the resulting state. It returns nil, nil when the path does not
// match PathPattern or no resource id can be extracted.
func (h *Handler) ProcessStubState(method, uri string, headers http.Header, body []byte, sm StubStateMachine) (*StateInfo, error) {
	if strings.TrimSpace(sm.ResourceType) == "" {
		return nil, &ConfigError{Pattern: sm.PathPattern, Field: "resourceType", Message: "resource type is required"}
	}

	var tmpl *matching.Template
	if sm.PathPattern != "" {
		t, err := matching.ParseTemplate(sm.PathPattern)
		if err != nil {
			return nil, &ConfigError{Pattern: sm.PathPattern, Field: "pattern", Message: err.Error()}
		}
		tmpl = t
	}

	extract, err := compileExtract(sm.PathPattern, "resourceIdExtract", tmpl, copyExtract(sm.ResourceIDExtract))
	if err != nil {
		return nil, err
	}
	triggers, err := compileStubTriggers(sm)
	if err != nil {
		return nil, err
	}

	req := newRequest(method, uri, headers, body)
	if tmpl != nil {
		params, ok := tmpl.Match(req.path)
		if !ok {
			return nil, nil
		}
		req.params = params
	}

	id, ok := extract(req)
	if !ok {
		h.log.Debug("stub resource id not found in request", "resourceType", sm.ResourceType, "path", req.path)
		return nil, nil
	}

	initial := sm.InitialState
	if initial == "" {
		initial = InitialState
	}
	scope := stubScopePrefix + sm.ResourceType

	previous, current, fired := advance(h.store, scope, id, initial, triggers, req, h.eval)
	if fired != nil {
		h.log.Debug("stub state transition", "resourceType", sm.ResourceType, "resourceId", id, "from", previous, "to", current)
		h.observer.OnTransition(scope, id, previous, current)
	}

	return &StateInfo{
		Pattern:       sm.PathPattern,
		ResourceType:  sm.ResourceType,
		ResourceID:    id,
		CurrentState:  current,
		PreviousState: previous,
		Transitioned:  fired != nil,
	}, nil
}

func compileStubTriggers(sm StubStateMachine) ([]trigger, error) {
	triggers := make([]trigger, 0, len(sm.Transitions))
	for i, t := range sm.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		method := strings.ToUpper(strings.TrimSpace(t.Method))
		if method == "" {
			return nil, &ConfigError{Pattern: sm.PathPattern, Field: field + ".method", Message: "method is required"}
		}
		if t.FromState == "" || t.ToState == "" {
			return nil, &ConfigError{Pattern: sm.PathPattern, Field: field, Message: "from and to states are required"}
		}
		var tmpl *matching.Template
		if t.PathPattern != "" {
			tt, err := matching.ParseTemplate(t.PathPattern)
			if err != nil {
				return nil, &ConfigError{Pattern: sm.PathPattern, Field: field + ".path", Message: err.Error()}
			}
			tmpl = tt
		}
		triggers = append(triggers, trigger{
			TransitionTrigger: t,
			method:            method,
			tmpl:              tmpl,
			cond:              condition.Cached(t.Condition),
		})
	}
	return triggers, nil
}

// StubState returns the tracked state of a stub resource.
func (h *Handler) StubState(resourceType, id string) (*StateInfo, bool) {
	state, ok := h.store.Get(stubScopePrefix+resourceType, id)
	if !ok {
		return nil, false
	}
	return &StateInfo{ResourceType: resourceType, ResourceID: id, CurrentState: state}, true
}
