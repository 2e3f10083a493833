package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type modelFile struct {
	Models []*ModelDefinition `yaml:"models"`
}

// LoadModels decodes model definitions from YAML. The document is either a
// list of models or a mapping with a "models" key. JSON input is accepted as
// YAML.
func LoadModels(r io.Reader) ([]*ModelDefinition, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	var models []*ModelDefinition
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&models); err != nil {
			return nil, fmt.Errorf("failed to decode models: %w", err)
		}
	case yaml.MappingNode:
		var file modelFile
		if err := doc.Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to decode models: %w", err)
		}
		models = file.Models
	default:
		return nil, fmt.Errorf("models document must be a list or a mapping")
	}

	for _, m := range models {
		if m != nil {
			m.normalize()
		}
	}
	return models, nil
}

// LoadRegistry reads a model file and registers every model in it. Models
// with error-level validation issues are rejected.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	models, err := LoadModels(f)
	if err != nil {
		return nil, err
	}
	registry, err := NewRegistry(models...)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if issues := ValidateModel(m, registry); HasErrors(issues) {
			return nil, &ModelError{Model: m.Name, Issues: issues}
		}
	}
	return registry, nil
}

// ModelError reports an invalid model definition.
type ModelError struct {
	Model  string
	Issues []Issue
}

func (e *ModelError) Error() string {
	for _, issue := range e.Issues {
		if issue.Severity != "warning" {
			return fmt.Sprintf("invalid model %s: %s (%s)", e.Model, issue.Message, issue.Code)
		}
	}
	return fmt.Sprintf("invalid model %s", e.Model)
}
