// Package schema infers a structural schema from a batch of records and
// compares schemas by their field sets.
//
// The serialized form follows the draft-04 JSON-Schema layout that common
// generators emit:
//
//	{"$schema": "...", "type": "object", "properties": {...}, "required": [...]}
//
// Only a subset of JSON Schema is modelled: types, nested properties, array
// items and required lists. Validation against the schema is structural
// (field presence) and lives in package validator.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Draft is the $schema URI stamped on every inferred schema.
const Draft = "http://json-schema.org/schema#"

// JSON-Schema type names produced by inference.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Schema is the top-level inferred schema of a batch.
type Schema struct {
	Schema     string               `json:"$schema,omitempty"`
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties"`
	Required   []string             `json:"required"`
}

// Property describes one field. Properties and Required are set for objects,
// Items for arrays.
type Property struct {
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties,omitempty"`
	Items      *Property            `json:"items,omitempty"`
	Required   []string             `json:"required,omitempty"`
}

// Empty returns the schema of a batch with no user fields.
func Empty() Schema {
	return Schema{
		Schema:     Draft,
		Type:       TypeObject,
		Properties: map[string]*Property{},
		Required:   []string{},
	}
}

// IsZero reports whether s was never populated (for example the value a
// store returns before the first commit).
func (s Schema) IsZero() bool {
	return s.Type == "" && len(s.Properties) == 0
}

// FieldSet returns the top-level property names of s, sorted.
func (s Schema) FieldSet() []string {
	out := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether field is a top-level property of s.
func (s Schema) Has(field string) bool {
	_, ok := s.Properties[field]
	return ok
}

// Marshal renders s as JSON. Map keys are emitted in sorted order, so two
// equal schemas always produce identical bytes.
func Marshal(s Schema) ([]byte, error) {
	if s.Properties == nil {
		s.Properties = map[string]*Property{}
	}
	if s.Required == nil {
		s.Required = []string{}
	}
	return json.Marshal(s)
}

// Unmarshal parses a stored schema document.
func Unmarshal(b []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return Schema{}, fmt.Errorf("schema: decode: %w", err)
	}
	if s.Properties == nil {
		s.Properties = map[string]*Property{}
	}
	if s.Required == nil {
		s.Required = []string{}
	}
	return s, nil
}
