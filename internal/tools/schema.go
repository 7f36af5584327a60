package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// SchemaFor reflects the argument struct T into a ToolSchema. Fields
// without omitempty are required; numeric bounds and defaults come from
// jsonschema tags.
func SchemaFor[T any]() ToolSchema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var input T
	reflected := reflector.Reflect(input)

	schema := ToolSchema{
		Required:   append([]string{}, reflected.Required...),
		Properties: make(map[string]Property),
	}
	if reflected.Properties == nil {
		return schema
	}
	for pair := reflected.Properties.Oldest(); pair != nil; pair = pair.Next() {
		schema.Order = append(schema.Order, pair.Key)
		schema.Properties[pair.Key] = propertyFrom(pair.Value)
	}
	return schema
}

func propertyFrom(s *jsonschema.Schema) Property {
	p := Property{
		Type:        s.Type,
		Description: s.Description,
		Default:     s.Default,
	}
	if n, ok := s.Default.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			p.Default = i
		}
	}
	if s.Minimum != "" {
		if f, err := s.Minimum.Float64(); err == nil {
			p.Minimum = &f
		}
	}
	if s.Maximum != "" {
		if f, err := s.Maximum.Float64(); err == nil {
			p.Maximum = &f
		}
	}
	if s.Items != nil {
		p.Items = &PropertyItems{Type: s.Items.Type}
	}
	return p
}

// GenaiSchema converts the schema into the Gemini parameter schema.
// A schema without properties converts to nil.
func (s ToolSchema) GenaiSchema() *genai.Schema {
	if len(s.Properties) == 0 {
		return nil
	}
	out := &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       make(map[string]*genai.Schema, len(s.Properties)),
		Required:         s.Required,
		PropertyOrdering: s.Order,
	}
	for name, p := range s.Properties {
		out.Properties[name] = p.genai()
	}
	return out
}

func (p Property) genai() *genai.Schema {
	s := &genai.Schema{
		Type:        genaiType(p.Type),
		Description: p.Description,
		Default:     p.Default,
		Minimum:     p.Minimum,
		Maximum:     p.Maximum,
	}
	if p.Items != nil {
		s.Items = &genai.Schema{Type: genaiType(p.Items.Type)}
	}
	return s
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}

// Declaration builds the Gemini function declaration for t.
func (t *Tool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Schema.GenaiSchema(),
	}
}
