package schema

import (
	"strings"
)

// ToJSONSchema converts the schema to JSON Schema format for LLM structured output.
// Optional fields stay out of "required" and nullable fields accept null.
func (s Schema) ToJSONSchema() (map[string]any, error) {
	return s.toJSONSchema(false), nil
}

// ToStrictJSONSchema is ToJSONSchema for providers whose strict mode demands
// every property be listed as required. Optional fields are made nullable instead.
func (s Schema) ToStrictJSONSchema() (map[string]any, error) {
	return s.toJSONSchema(true), nil
}

func (s Schema) toJSONSchema(strict bool) map[string]any {
	schema := objectSchema(s.Fields, strict)
	if s.Description != "" {
		schema["description"] = s.Description
	}
	return schema
}

func objectSchema(fields []Field, strict bool) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))

	for _, field := range fields {
		properties[field.Name] = fieldToJSONSchema(field, strict)
		if field.Required || strict {
			required = append(required, field.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false, // Required for strict mode
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// fieldToJSONSchema converts a Field to JSON Schema format.
func fieldToJSONSchema(f Field, strict bool) map[string]any {
	var schema map[string]any
	if f.Type == TypeObject && len(f.Properties) > 0 {
		schema = objectSchema(f.Properties, strict)
	} else {
		schema = map[string]any{"type": string(f.Type)}
	}

	if f.Nullable || (strict && !f.Required) {
		schema["type"] = []string{string(f.Type), "null"}
	}

	if f.Description != "" {
		schema["description"] = f.Description
	}

	if len(f.Enum) > 0 {
		schema["enum"] = f.Enum
	}

	if len(f.Examples) > 0 {
		schema["examples"] = f.Examples
	}

	if f.Default != nil {
		schema["default"] = f.Default
	}

	if f.Type == TypeArray && f.Items != nil {
		schema["items"] = fieldToJSONSchema(*f.Items, strict)
	}

	return schema
}

// ToPromptDescription generates a human-readable description for the LLM prompt.
func (s Schema) ToPromptDescription() string {
	var sb strings.Builder

	sb.WriteString("## Record\n")
	if s.Description != "" {
		sb.WriteString(s.Description)
	} else {
		sb.WriteString("Extract the following structured data.")
	}
	sb.WriteString("\n\n## Fields\n")

	for _, field := range s.Fields {
		writeFieldDescription(&sb, field, 0)
	}

	return sb.String()
}

// writeFieldDescription writes a field description to the string builder.
func writeFieldDescription(sb *strings.Builder, f Field, indent int) {
	prefix := strings.Repeat("  ", indent)

	sb.WriteString(prefix)
	sb.WriteString("- ")
	sb.WriteString(f.Name)
	sb.WriteString(" (")
	sb.WriteString(string(f.Type))
	if f.Type == TypeArray && f.Items != nil && f.Items.Type != TypeObject {
		sb.WriteString(" of ")
		sb.WriteString(string(f.Items.Type))
	}

	switch {
	case f.Required:
		sb.WriteString(", required")
	case f.Nullable:
		sb.WriteString(", null if absent")
	}

	sb.WriteString(")")

	if f.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Description)
	}
	if len(f.Enum) > 0 {
		sb.WriteString(" One of: ")
		sb.WriteString(strings.Join(f.Enum, ", "))
		sb.WriteString(".")
	}
	if len(f.Examples) > 0 {
		sb.WriteString(" e.g. ")
		sb.WriteString(strings.Join(f.Examples, "; "))
	}

	sb.WriteString("\n")

	if f.Type == TypeArray && f.Items != nil && f.Items.Type == TypeObject {
		sb.WriteString(prefix)
		sb.WriteString("  Each item:\n")
		for _, prop := range f.Items.Properties {
			writeFieldDescription(sb, prop, indent+2)
		}
	}

	if f.Type == TypeObject && len(f.Properties) > 0 {
		for _, prop := range f.Properties {
			writeFieldDescription(sb, prop, indent+1)
		}
	}
}
