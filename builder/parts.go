package builder

import (
	"llmbridge/model"
)

// PartsMessage is the remapped-role wire shape: roles are "user" and
// "model", content is a parts array of text, functionCall, and
// functionResponse entries. JSON tags match the Gemini generateContent
// schema.
type PartsMessage struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one element of a PartsMessage's parts array.
//
// ThoughtSignature is an opaque token issued by thinking model variants.
// It must be echoed back verbatim on the part that carries the
// functionCall it was issued with; losing it invalidates the model's
// internal reasoning state across the tool round-trip.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
}

// FunctionCall names the callable and carries its arguments as a map.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse carries one executed result back, addressed by
// function name.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// WireRole implements WireMessage.
func (m PartsMessage) WireRole() string { return m.Role }

// PartsBuilder renders conversations in the Gemini-style parts format.
//
// Function results are delivered inside a user-role parts message, not a
// dedicated role. The system prompt is out-of-band for this family
// (systemInstruction on the request); like BlockBuilder, it is folded
// into the first user turn so the rendered sequence is self-contained.
type PartsBuilder struct{}

// BuildContext implements ContextBuilder.BuildContext.
func (b *PartsBuilder) BuildContext(conversation []model.ConversationMessage, systemPrompt string) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(conversation))
	pendingSystem := systemPrompt

	for i, msg := range conversation {
		if !model.IsEligibleForContext(msg, i == len(conversation)-1) {
			continue
		}

		switch msg.Role {
		case model.RoleUser:
			content := msg.Content
			if pendingSystem != "" {
				content = pendingSystem + "\n\n" + content
				pendingSystem = ""
			}
			out = append(out, PartsMessage{
				Role:  "user",
				Parts: []Part{{Text: content}},
			})

		case model.RoleAssistant:
			out = append(out, modelPartsMessage(msg.Content, msg.ToolCalls))
			if parts := resolvedResponseParts(msg.ToolCalls); len(parts) > 0 {
				out = append(out, PartsMessage{Role: "user", Parts: parts})
			}

		case model.RoleTool:
			name := ""
			if len(msg.ToolCalls) > 0 {
				name = msg.ToolCalls[0].Name
			}
			out = append(out, PartsMessage{
				Role: "user",
				Parts: []Part{{FunctionResponse: &FunctionResponse{
					Name:     name,
					Response: map[string]any{"content": msg.Content},
				}}},
			})
		}
	}

	return out, nil
}

// BuildToolContinuation implements ContextBuilder.BuildToolContinuation.
func (b *PartsBuilder) BuildToolContinuation(userPrompt string, toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage, systemPrompt string) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(previousMessages)+3)
	for _, prev := range previousMessages {
		pm, ok := prev.(PartsMessage)
		if !ok {
			return nil, errForeignWireMessage(FamilyParts, prev)
		}
		out = append(out, pm)
	}

	if userPrompt != "" {
		content := userPrompt
		if len(out) == 0 && systemPrompt != "" {
			content = systemPrompt + "\n\n" + content
		}
		out = append(out, PartsMessage{Role: "user", Parts: []Part{{Text: content}}})
	}

	return appendPartsExecution(out, toolCalls, toolResults), nil
}

// AppendToolExecution implements ContextBuilder.AppendToolExecution.
func (b *PartsBuilder) AppendToolExecution(toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(previousMessages)+2)
	for _, prev := range previousMessages {
		pm, ok := prev.(PartsMessage)
		if !ok {
			return nil, errForeignWireMessage(FamilyParts, prev)
		}
		out = append(out, pm)
	}
	return appendPartsExecution(out, toolCalls, toolResults), nil
}

// appendPartsExecution appends one model-role message holding the
// functionCall parts and one user-role message holding the matching
// functionResponse parts.
func appendPartsExecution(out []WireMessage, toolCalls []model.ToolCall, toolResults []model.ToolResult) []WireMessage {
	if len(toolCalls) == 0 {
		return out
	}

	out = append(out, modelPartsMessage("", toolCalls))

	parts := make([]Part, 0, len(toolCalls))
	for i, res := range pairResults(toolCalls, toolResults) {
		part := Part{FunctionResponse: &FunctionResponse{
			Name: orCallID(res.Name, toolCalls[i].Name),
			Response: map[string]any{
				"content":  res.Payload(),
				"is_error": !res.Success && res.Error != "",
			},
		}}
		// Thinking variants require the signature to ride the response
		// part that answers the signed call.
		part.ThoughtSignature = toolCalls[i].ThoughtSignature
		parts = append(parts, part)
	}
	return append(out, PartsMessage{Role: "user", Parts: parts})
}

func modelPartsMessage(content string, toolCalls []model.ToolCall) PartsMessage {
	parts := make([]Part, 0, len(toolCalls)+1)
	if content != "" {
		parts = append(parts, Part{Text: content})
	}
	for _, tc := range toolCalls {
		args := tc.Parameters
		if args == nil {
			args = map[string]any{}
		}
		parts = append(parts, Part{
			FunctionCall:     &FunctionCall{Name: tc.Name, Args: args},
			ThoughtSignature: tc.ThoughtSignature,
		})
	}
	if len(parts) == 0 {
		parts = append(parts, Part{Text: ""})
	}
	return PartsMessage{Role: "model", Parts: parts}
}

// resolvedResponseParts renders functionResponse parts for a stored
// assistant turn's already-resolved calls during full replay.
func resolvedResponseParts(toolCalls []model.ToolCall) []Part {
	var parts []Part
	for _, tc := range toolCalls {
		if !tc.Resolved() {
			continue
		}
		parts = append(parts, Part{
			FunctionResponse: &FunctionResponse{
				Name: tc.Name,
				Response: map[string]any{
					"content":  resolvedPayload(tc),
					"is_error": tc.Error != "",
				},
			},
			ThoughtSignature: tc.ThoughtSignature,
		})
	}
	return parts
}
