// Package knowledgebase holds the static organisation facts and chatbot
// settings that are seeded into the config sections.
package knowledgebase

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// Default returns the embedded knowledge base.
func Default() (map[string]any, error) {
	return Load(bytes.NewReader(defaultDocument))
}

// LoadFile reads a knowledge-base YAML file from disk.
func LoadFile(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("knowledgebase: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes a YAML mapping into a JSON-compatible payload. Nested maps
// always have string keys.
func Load(r io.Reader) (map[string]any, error) {
	var raw any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("knowledgebase: document is empty")
		}
		return nil, fmt.Errorf("knowledgebase: decode: %w", err)
	}
	doc, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("knowledgebase: top level must be a mapping, got %T", raw)
	}
	if len(doc) == 0 {
		return nil, errors.New("knowledgebase: document has no sections")
	}
	return doc, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
