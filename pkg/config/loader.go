package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

// Document formats. FormatAuto picks JSON when the document starts with '{'.
const (
	FormatAuto Format = ""
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrEmptyDocument is returned for empty input.
var ErrEmptyDocument = errors.New("document is empty")

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
// Unset variables without a default expand to the empty string.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(sub[1]); val != "" {
			return val
		}
		return sub[2]
	})
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// Parse decodes, schema-checks and validates a document.
// The returned error is a *SchemaValidationResult when the document is
// well-formed but invalid.
func Parse(data []byte, format Format) (*Document, error) {
	expanded := []byte(ExpandEnvVars(string(data)))
	if len(bytes.TrimSpace(expanded)) == 0 {
		return nil, ErrEmptyDocument
	}
	if format == FormatAuto {
		format = FormatYAML
		if bytes.HasPrefix(bytes.TrimSpace(expanded), []byte("{")) {
			format = FormatJSON
		}
	}

	normalized, err := normalize(expanded, format)
	if err != nil {
		return nil, err
	}

	var instance any
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if result := validateSchema(instance); !result.IsValid() {
		return nil, result
	}

	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if result := Validate(&doc); !result.IsValid() {
		return nil, result
	}
	return &doc, nil
}

// normalize converts the document to canonical JSON.
func normalize(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		out, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// LoadFile reads and parses one document.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	doc, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// LoadGlob loads every document matching pattern, in lexical path order.
// Patterns may use ** to match directories recursively.
func LoadGlob(pattern string) ([]*Document, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern: %w", err)
	}
	slices.Sort(matches)

	docs := make([]*Document, 0, len(matches))
	for _, m := range matches {
		doc, err := LoadFile(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Load loads path as a single file, or as a glob when it contains glob
// metacharacters, or every .yaml/.yml/.json file below it when it is a
// directory.
func Load(path string) ([]*Document, error) {
	if strings.ContainsAny(path, "*?[{") {
		return LoadGlob(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return LoadGlob(filepath.Join(path, "**", "*.{yaml,yml,json}"))
	}
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []*Document{doc}, nil
}
