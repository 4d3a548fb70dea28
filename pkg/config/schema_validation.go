package config

import (
	"fmt"
	"strings"

	"github.com/getmockd/statemock/internal/matching"
)

// SchemaValidationError is a single validation problem.
type SchemaValidationError struct {
	Path    string // e.g. "stateful[0].transitions[1].to"
	Message string
}

func (e SchemaValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// SchemaValidationResult collects validation problems.
type SchemaValidationResult struct {
	Errors []SchemaValidationError
}

// IsValid reports whether no problems were found.
func (r *SchemaValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns all problems, one per line.
func (r *SchemaValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// AddError records a problem.
func (r *SchemaValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, SchemaValidationError{Path: path, Message: message})
}

// Err returns r as an error, or nil when valid.
func (r *SchemaValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return r
}

// Validate checks the parts of a document the schema cannot express:
// unique patterns, well-formed path templates, extractor parameters bound to
// the pattern and transitions referencing declared states.
func Validate(doc *Document) *SchemaValidationResult {
	result := &SchemaValidationResult{}

	if doc.Version == "" {
		result.AddError("version", "required")
	} else if doc.Version != Version {
		result.AddError("version", fmt.Sprintf("unsupported version %q, expected %q", doc.Version, Version))
	}

	seen := make(map[string]int)
	for i, entry := range doc.Stateful {
		path := fmt.Sprintf("stateful[%d]", i)
		if prev, dup := seen[entry.Path]; dup {
			result.AddError(path+".path", fmt.Sprintf("duplicate path %q (also stateful[%d])", entry.Path, prev))
		} else {
			seen[entry.Path] = i
		}
		validateEntry(&entry, path, result)
	}
	return result
}

func validateEntry(entry *StatefulEntry, path string, result *SchemaValidationResult) {
	tmpl, err := matching.ParseTemplate(entry.Path)
	if err != nil {
		result.AddError(path+".path", err.Error())
	}
	if strings.TrimSpace(entry.ResourceType) == "" {
		result.AddError(path+".resourceType", "required")
	}

	validateExtract(&entry.ResourceIDExtract, path+".resourceIdExtract", tmpl, result)

	if _, ok := entry.States["initial"]; !ok {
		result.AddError(path+".states", `missing required "initial" state`)
	}
	for name, st := range entry.States {
		if st.StatusCode != 0 && (st.StatusCode < 100 || st.StatusCode > 599) {
			result.AddError(fmt.Sprintf("%s.states.%s.statusCode", path, name), fmt.Sprintf("invalid status code %d", st.StatusCode))
		}
	}

	for i, t := range entry.Transitions {
		tpath := fmt.Sprintf("%s.transitions[%d]", path, i)
		if strings.TrimSpace(t.Method) == "" {
			result.AddError(tpath+".method", "required")
		}
		if _, ok := entry.States[t.From]; !ok {
			result.AddError(tpath+".from", fmt.Sprintf("unknown state %q", t.From))
		}
		if _, ok := entry.States[t.To]; !ok {
			result.AddError(tpath+".to", fmt.Sprintf("unknown state %q", t.To))
		}
		if t.Path != "" && tmpl != nil {
			tt, err := matching.ParseTemplate(t.Path)
			if err != nil {
				result.AddError(tpath+".path", err.Error())
			} else if !tt.Equal(tmpl) {
				result.AddError(tpath+".path", fmt.Sprintf("must match the entry path %q", entry.Path))
			}
		}
	}
}

func validateExtract(ex *ExtractSpec, path string, tmpl *matching.Template, result *SchemaValidationResult) {
	switch ex.Type {
	case ExtractPathParam:
		if ex.Param == "" {
			result.AddError(path+".param", "required")
		} else if tmpl != nil && !tmpl.HasParam(ex.Param) {
			result.AddError(path+".param", fmt.Sprintf("path has no {%s} placeholder", ex.Param))
		}
	case ExtractHeader:
		if ex.Name == "" {
			result.AddError(path+".name", "required")
		}
	case ExtractQueryParam:
		if ex.Param == "" {
			result.AddError(path+".param", "required")
		}
	case ExtractJSONPath:
		if ex.Path == "" {
			result.AddError(path+".path", "required")
		} else if _, err := matching.DottedPath(ex.Path); err != nil {
			result.AddError(path+".path", err.Error())
		}
	case ExtractComposite:
		if len(ex.Extractors) == 0 {
			result.AddError(path+".extractors", "at least one extractor is required")
		}
		for i := range ex.Extractors {
			validateExtract(&ex.Extractors[i], fmt.Sprintf("%s.extractors[%d]", path, i), tmpl, result)
		}
	case "":
		result.AddError(path+".type", "required")
	default:
		result.AddError(path+".type", fmt.Sprintf("unknown extractor type %q", ex.Type))
	}
}
