package stateful

import (
	"maps"
	"slices"
)

// InitialState is the state every resource starts in.
const InitialState = "initial"

// StatefulConfig describes the state machine attached to one path pattern.
type StatefulConfig struct {
	// ResourceType names the kind of resource, e.g. "order".
	ResourceType string `json:"resourceType" yaml:"resourceType"`

	// ResourceIDExtract says where the resource identifier comes from.
	ResourceIDExtract ResourceIDExtract `json:"-" yaml:"-"`

	// StateResponses maps a state name to the response served in that state.
	// It must contain InitialState.
	StateResponses map[string]StateResponse `json:"stateResponses" yaml:"stateResponses"`

	// Transitions are scanned in order; the first eligible one fires.
	Transitions []TransitionTrigger `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// ResourceIDExtract is one of PathParam, Header, QueryParam, JSONPath or
// Composite.
type ResourceIDExtract interface {
	isResourceIDExtract()
}

// PathParam takes the id from a named placeholder of the path pattern.
type PathParam struct {
	Param string
}

// Header takes the id from the first value of a request header.
type Header struct {
	Name string
}

// QueryParam takes the id from the first value of a query parameter.
type QueryParam struct {
	Param string
}

// JSONPath takes the id from a scalar in the JSON request body.
// Paths are dotted ("user.id", "$.items.0.sku") or bracketed JSONPath.
type JSONPath struct {
	Path string
}

// Composite tries each extractor in order and uses the first non-empty id.
type Composite struct {
	Extractors []ResourceIDExtract
}

func (PathParam) isResourceIDExtract()  {}
func (Header) isResourceIDExtract()     {}
func (QueryParam) isResourceIDExtract() {}
func (JSONPath) isResourceIDExtract()   {}
func (Composite) isResourceIDExtract()  {}

// StateResponse is the response served while a resource is in a state.
type StateResponse struct {
	StatusCode   int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	BodyTemplate string            `json:"body,omitempty" yaml:"body,omitempty"`
	ContentType  string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
}

// TransitionTrigger moves a resource from FromState to ToState when a
// request with Method on PathPattern arrives and Condition holds.
type TransitionTrigger struct {
	Method      string `json:"method" yaml:"method"`
	PathPattern string `json:"path,omitempty" yaml:"path,omitempty"`
	FromState   string `json:"from" yaml:"from"`
	ToState     string `json:"to" yaml:"to"`
	Condition   string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// StatefulResponse is a rendered response.
type StatefulResponse struct {
	StatusCode  int               `json:"statusCode"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body"`
	ContentType string            `json:"contentType"`
	State       string            `json:"state"`
	ResourceID  string            `json:"resourceId"`
}

// StateInfo describes the tracked state of one resource.
type StateInfo struct {
	Pattern       string `json:"pattern,omitempty"`
	ResourceType  string `json:"resourceType,omitempty"`
	ResourceID    string `json:"resourceId"`
	CurrentState  string `json:"currentState"`
	PreviousState string `json:"previousState,omitempty"`
	Transitioned  bool   `json:"transitioned,omitempty"`
}

// ConfigInfo summarizes a registered config.
type ConfigInfo struct {
	Pattern      string   `json:"pattern"`
	ResourceType string   `json:"resourceType"`
	States       []string `json:"states"`
	Transitions  int      `json:"transitions"`
	Resources    int      `json:"resources"`
}

// Overview summarizes the handler's registrations and tracked resources.
type Overview struct {
	Configs        []ConfigInfo `json:"configs"`
	TotalResources int          `json:"totalResources"`
	StubResources  int          `json:"stubResources"`
}

// copyConfig returns a deep copy so a registered config can't be mutated
// through the caller's maps and slices.
func copyConfig(cfg StatefulConfig) StatefulConfig {
	out := StatefulConfig{
		ResourceType:      cfg.ResourceType,
		ResourceIDExtract: copyExtract(cfg.ResourceIDExtract),
		StateResponses:    make(map[string]StateResponse, len(cfg.StateResponses)),
		Transitions:       slices.Clone(cfg.Transitions),
	}
	for name, resp := range cfg.StateResponses {
		resp.Headers = maps.Clone(resp.Headers)
		out.StateResponses[name] = resp
	}
	return out
}

func copyExtract(ex ResourceIDExtract) ResourceIDExtract {
	switch e := ex.(type) {
	case Composite:
		children := make([]ResourceIDExtract, len(e.Extractors))
		for i, child := range e.Extractors {
			children[i] = copyExtract(child)
		}
		return Composite{Extractors: children}
	case *Composite:
		if e != nil {
			return copyExtract(*e)
		}
	case *PathParam:
		if e != nil {
			return *e
		}
	case *Header:
		if e != nil {
			return *e
		}
	case *QueryParam:
		if e != nil {
			return *e
		}
	case *JSONPath:
		if e != nil {
			return *e
		}
	default:
		return ex
	}
	return nil
}

// stateNames returns the config's states sorted, initial first.
func stateNames(responses map[string]StateResponse) []string {
	names := slices.Collect(maps.Keys(responses))
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == InitialState:
			return -1
		case b == InitialState:
			return 1
		case a < b:
			return -1
		default:
			return 1
		}
	})
	return names
}
