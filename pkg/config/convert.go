package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getmockd/statemock/pkg/stateful"
)

// Registrar receives stateful configs; *stateful.Handler implements it.
type Registrar interface {
	AddConfig(pattern string, cfg stateful.StatefulConfig) error
}

// ToConfig converts the entry into a stateful.StatefulConfig.
func (e *StatefulEntry) ToConfig() (stateful.StatefulConfig, error) {
	extract, err := e.ResourceIDExtract.ToExtract()
	if err != nil {
		return stateful.StatefulConfig{}, err
	}

	cfg := stateful.StatefulConfig{
		ResourceType:      e.ResourceType,
		ResourceIDExtract: extract,
		StateResponses:    make(map[string]stateful.StateResponse, len(e.States)),
		Transitions:       make([]stateful.TransitionTrigger, 0, len(e.Transitions)),
	}
	for name, st := range e.States {
		body, err := bodyTemplate(st.Body)
		if err != nil {
			return stateful.StatefulConfig{}, fmt.Errorf("states.%s.body: %w", name, err)
		}
		cfg.StateResponses[name] = stateful.StateResponse{
			StatusCode:   st.StatusCode,
			Headers:      st.Headers,
			BodyTemplate: body,
			ContentType:  st.ContentType,
		}
	}
	for _, t := range e.Transitions {
		cfg.Transitions = append(cfg.Transitions, stateful.TransitionTrigger{
			Method:      t.Method,
			PathPattern: t.Path,
			FromState:   t.From,
			ToState:     t.To,
			Condition:   t.Condition,
		})
	}
	return cfg, nil
}

// ToExtract converts the spec into a stateful.ResourceIDExtract.
func (x *ExtractSpec) ToExtract() (stateful.ResourceIDExtract, error) {
	switch x.Type {
	case ExtractPathParam:
		return stateful.PathParam{Param: x.Param}, nil
	case ExtractHeader:
		return stateful.Header{Name: x.Name}, nil
	case ExtractQueryParam:
		return stateful.QueryParam{Param: x.Param}, nil
	case ExtractJSONPath:
		return stateful.JSONPath{Path: x.Path}, nil
	case ExtractComposite:
		children := make([]stateful.ResourceIDExtract, len(x.Extractors))
		for i := range x.Extractors {
			child, err := x.Extractors[i].ToExtract()
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return stateful.Composite{Extractors: children}, nil
	default:
		return nil, fmt.Errorf("unknown extractor type %q", x.Type)
	}
}

// bodyTemplate renders a state body: strings as-is, anything else as JSON.
func bodyTemplate(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	default:
		out, err := json.Marshal(b)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// Apply registers every entry with r. All entries are attempted; failures
// are joined.
func (d *Document) Apply(r Registrar) error {
	var errs []error
	for i := range d.Stateful {
		entry := &d.Stateful[i]
		cfg, err := entry.ToConfig()
		if err == nil {
			err = r.AddConfig(entry.Path, cfg)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("stateful[%d] %s: %w", i, entry.Path, err))
		}
	}
	return errors.Join(errs...)
}
