package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes and validates a workflow model document.
func ParseJSON(data []byte) (*TaskGraphModel, error) {
	var m TaskGraphModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode model: %v", ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseYAML decodes a YAML workflow model. The document is converted to JSON
// first so both encodings share the same field names and kind parsing.
func ParseYAML(data []byte) (*TaskGraphModel, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode model: %v", ErrInvalidModel, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: convert model: %v", ErrInvalidModel, err)
	}
	return ParseJSON(js)
}

// ParseFile reads a model file, choosing the decoder by extension.
func ParseFile(path string) (*TaskGraphModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}
