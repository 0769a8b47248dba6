package capability

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// The transport layer advertises the aggregated catalog to whichever
// provider family is active. Each vendor wants the same JSON-Schema
// information in a different envelope; these converters produce the SDK
// types the transport hands to the vendor client.

// schemaParameters renders an input schema as the plain JSON-Schema map
// that OpenAI-compatible and Gemini-style declarations embed directly.
func schemaParameters(schema mcptypes.ToolInputSchema) map[string]any {
	params := map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}

// ToOpenAITools converts catalog entries to the OpenAI function-tool
// envelope, shared by OpenAI-compatible gateways.
func ToOpenAITools(catalog []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(catalog) == 0 {
		return nil
	}

	out := make([]openai.ChatCompletionToolUnionParam, 0, len(catalog))
	for _, tool := range catalog {
		out = append(out, openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(schemaParameters(tool.InputSchema)),
			},
		))
	}
	return out
}

// ToAnthropicTools converts catalog entries to Anthropic's tool union.
// The schema param has no top-level type field ("object" is implied) and
// takes $defs through ExtraFields.
func ToAnthropicTools(catalog []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(catalog) == 0 {
		return nil
	}

	out := make([]anthropic.ToolUnionParam, 0, len(catalog))
	for _, tool := range catalog {
		schema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
			Required:   tool.InputSchema.Required,
		}
		if tool.InputSchema.Defs != nil {
			schema.ExtraFields = map[string]any{"$defs": tool.InputSchema.Defs}
		}

		union := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" {
			union.OfTool.Description = anthropic.String(tool.Description)
		}
		out = append(out, union)
	}
	return out
}

// ToOllamaTools converts catalog entries to the Ollama API tool format
// used for locally hosted models. Ollama wants typed ToolProperty values
// rather than a raw JSON-Schema map, so each property is lifted out of
// the schema's any-typed bag individually.
func ToOllamaTools(catalog []mcptypes.Tool) []api.Tool {
	if len(catalog) == 0 {
		return nil
	}

	out := make([]api.Tool, 0, len(catalog))
	for _, tool := range catalog {
		params := api.ToolFunctionParameters{
			Type:       tool.InputSchema.Type,
			Required:   tool.InputSchema.Required,
			Defs:       tool.InputSchema.Defs,
			Properties: make(map[string]api.ToolProperty, len(tool.InputSchema.Properties)),
		}
		for name, value := range tool.InputSchema.Properties {
			params.Properties[name] = ollamaProperty(value)
		}
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func ollamaProperty(value any) api.ToolProperty {
	fields, ok := schemaFields(value)
	if !ok {
		return api.ToolProperty{}
	}

	prop := api.ToolProperty{
		Type:  propertyTypes(fields["type"]),
		Items: fields["items"],
	}
	if desc, ok := fields["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := fields["enum"].([]any); ok {
		prop.Enum = enum
	}
	if anyOf, ok := fields["anyOf"].([]any); ok {
		prop.AnyOf = make([]api.ToolProperty, 0, len(anyOf))
		for _, variant := range anyOf {
			prop.AnyOf = append(prop.AnyOf, ollamaProperty(variant))
		}
	}
	return prop
}

// schemaFields views a schema property value as a field map. Values built
// from struct types are normalized through a JSON round trip.
func schemaFields(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// propertyTypes reads a JSON-Schema "type" field, which may be a single
// name or a list of alternatives.
func propertyTypes(value any) api.PropertyType {
	switch t := value.(type) {
	case string:
		return api.PropertyType{t}
	case []string:
		return api.PropertyType(t)
	case []any:
		names := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return api.PropertyType(names)
	}
	return nil
}

// FunctionDeclaration is the Gemini-style tool declaration. The Gemini
// REST schema has no official Go SDK type for chat function declarations
// in this shape, so it is modeled directly with matching JSON tags.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToGeminiDeclarations converts catalog entries to Gemini function
// declarations.
func ToGeminiDeclarations(catalog []mcptypes.Tool) []FunctionDeclaration {
	if len(catalog) == 0 {
		return nil
	}

	out := make([]FunctionDeclaration, 0, len(catalog))
	for _, tool := range catalog {
		params := schemaParameters(tool.InputSchema)
		// The declarations schema is an OpenAPI subset without $defs.
		delete(params, "$defs")
		out = append(out, FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}
	return out
}
