// Package schema describes the record the LLM must return: its fields, the
// JSON Schema sent as a structured-output constraint, and validation.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType represents the type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Nullable    bool      `json:"nullable,omitempty" yaml:"nullable,omitempty"`     // Accepts null
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`             // Allowed string values
	Items       *Field    `json:"items,omitempty" yaml:"items,omitempty"`           // For array types
	Properties  []Field   `json:"-" yaml:"-"`                                       // For object types (populated by custom unmarshal)
	Validators  []string  `json:"validators,omitempty" yaml:"validators,omitempty"` // Validation tags
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`       // Default value
	Examples    []string  `json:"examples,omitempty" yaml:"examples,omitempty"`     // Example values
}

type fieldAlias Field

// fieldYAML captures properties as a raw node so both the map and the list
// form can be decoded.
type fieldYAML struct {
	fieldAlias `yaml:",inline"`
	Props      yaml.Node `yaml:"properties"`
}

// UnmarshalYAML accepts properties as a list of named fields or as a map
// keyed by name. Map entries keep their order in the document.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	var raw fieldYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*f = Field(raw.fieldAlias)
	props, err := decodeProperties(&raw.Props)
	if err != nil {
		return err
	}
	f.Properties = props
	return nil
}

func decodeProperties(node *yaml.Node) ([]Field, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		var props []Field
		if err := node.Decode(&props); err != nil {
			return nil, err
		}
		return props, nil
	case yaml.MappingNode:
		props := make([]Field, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var prop Field
			if err := node.Content[i+1].Decode(&prop); err != nil {
				return nil, err
			}
			prop.Name = node.Content[i].Value
			props = append(props, prop)
		}
		return props, nil
	default:
		return nil, fmt.Errorf("properties: expected a list or map, got %s", node.Tag)
	}
}

// fieldJSON mirrors Field with Properties exposed.
type fieldJSON struct {
	fieldAlias
	Properties []Field `json:"properties,omitempty"`
}

// MarshalJSON writes properties in list form.
func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{fieldAlias: fieldAlias(f), Properties: f.Properties})
}

// UnmarshalJSON accepts the same two properties forms as UnmarshalYAML. The
// map form is decoded through yaml.v3 so key order survives.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		fieldAlias
		Properties json.RawMessage `json:"properties,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Field(raw.fieldAlias)
	if len(raw.Properties) == 0 || string(raw.Properties) == "null" {
		return nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw.Properties, &node); err != nil {
		return err
	}
	props, err := decodeProperties(&node)
	if err != nil {
		return err
	}
	f.Properties = props
	return nil
}

// ValidationError represents a validation failure. Field is a json path such
// as "education[0].gpa".
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors joins several failures into one error.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
