package config

// Version is the only supported document version.
const Version = "1"

// Extractor type names.
const (
	ExtractPathParam  = "path_param"
	ExtractHeader     = "header"
	ExtractQueryParam = "query_param"
	ExtractJSONPath   = "json_path"
	ExtractComposite  = "composite"
)

// Document is a parsed statemock document.
type Document struct {
	Version  string          `json:"version" yaml:"version"`
	Stateful []StatefulEntry `json:"stateful" yaml:"stateful"`

	// Source is the file the document was loaded from, if any.
	Source string `json:"-" yaml:"-"`
}

// StatefulEntry declares the state machine for one path pattern.
type StatefulEntry struct {
	Path              string               `json:"path" yaml:"path"`
	ResourceType      string               `json:"resourceType" yaml:"resourceType"`
	ResourceIDExtract ExtractSpec          `json:"resourceIdExtract" yaml:"resourceIdExtract"`
	States            map[string]StateSpec `json:"states" yaml:"states"`
	Transitions       []TransitionSpec     `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// ExtractSpec declares where the resource id comes from. Which field is used
// depends on Type.
type ExtractSpec struct {
	Type       string        `json:"type" yaml:"type"`
	Param      string        `json:"param,omitempty" yaml:"param,omitempty"`
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	Path       string        `json:"path,omitempty" yaml:"path,omitempty"`
	Extractors []ExtractSpec `json:"extractors,omitempty" yaml:"extractors,omitempty"`
}

// StateSpec is the response served in one state. Body may be a string or
// any JSON value; non-string bodies are serialized as compact JSON.
type StateSpec struct {
	StatusCode  int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        any               `json:"body,omitempty" yaml:"body,omitempty"`
	ContentType string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
}

// TransitionSpec is one transition rule. An empty Path means the entry's path.
type TransitionSpec struct {
	Method    string `json:"method" yaml:"method"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	From      string `json:"from" yaml:"from"`
	To        string `json:"to" yaml:"to"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Patterns returns the path patterns declared by the document, in order.
func (d *Document) Patterns() []string {
	out := make([]string, 0, len(d.Stateful))
	for _, e := range d.Stateful {
		out = append(out, e.Path)
	}
	return out
}
