package builder

import (
	"encoding/json"

	"llmbridge/model"
)

// ChatMessage is the flat-array wire shape: one role/content pair per
// message, with tool calls attached to assistant messages and each tool
// result delivered as a separate role:tool message carrying a
// tool_call_id back-reference. JSON tags match the OpenAI chat schema.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ChatToolCall is one entry of an assistant message's tool_calls array.
// Arguments travel as a JSON-encoded string, as the chat API requires.
type ChatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ChatFunction `json:"function"`
}

// ChatFunction names the callable and carries its serialized arguments.
type ChatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// WireRole implements WireMessage.
func (m ChatMessage) WireRole() string { return m.Role }

// FlatBuilder renders conversations in the OpenAI-compatible flat format.
type FlatBuilder struct{}

// BuildContext implements ContextBuilder.BuildContext.
//
// Assistant messages with tool calls expand into the assistant message
// followed by one role:tool result message per call, preserving call
// order. Ineligible messages are dropped per model.IsEligibleForContext.
func (b *FlatBuilder) BuildContext(conversation []model.ConversationMessage, systemPrompt string) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(conversation)+1)
	if systemPrompt != "" {
		out = append(out, ChatMessage{Role: "system", Content: systemPrompt})
	}

	for i, msg := range conversation {
		if !model.IsEligibleForContext(msg, i == len(conversation)-1) {
			continue
		}

		switch msg.Role {
		case model.RoleUser:
			out = append(out, ChatMessage{Role: "user", Content: msg.Content})

		case model.RoleAssistant:
			out = append(out, assistantChatMessage(msg.Content, msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				if !tc.Resolved() {
					continue
				}
				out = append(out, toolResultChatMessage(tc.ID, resolvedPayload(tc)))
			}

		case model.RoleTool:
			// Stored tool turns carry their payload in Content and the
			// back-reference in the first tool call entry, if present.
			id := ""
			if len(msg.ToolCalls) > 0 {
				id = msg.ToolCalls[0].ID
			}
			out = append(out, ChatMessage{Role: "tool", Content: msg.Content, ToolCallID: id})
		}
	}

	return out, nil
}

// BuildToolContinuation implements ContextBuilder.BuildToolContinuation.
//
// System-role messages are filtered out of previousMessages: providers
// that take the system prompt out-of-band reject system entries inside a
// continuation array, so history is re-seeded from the systemPrompt
// parameter alone.
func (b *FlatBuilder) BuildToolContinuation(userPrompt string, toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage, systemPrompt string) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(previousMessages)+len(toolCalls)+3)
	if systemPrompt != "" {
		out = append(out, ChatMessage{Role: "system", Content: systemPrompt})
	}

	for _, prev := range previousMessages {
		cm, ok := prev.(ChatMessage)
		if !ok {
			return nil, errForeignWireMessage(FamilyFlat, prev)
		}
		if cm.Role == "system" {
			continue
		}
		out = append(out, cm)
	}

	if userPrompt != "" {
		out = append(out, ChatMessage{Role: "user", Content: userPrompt})
	}

	return appendFlatExecution(out, toolCalls, toolResults), nil
}

// AppendToolExecution implements ContextBuilder.AppendToolExecution. It
// never introduces a new user turn and keeps previous history verbatim,
// including system entries the caller chose to carry.
func (b *FlatBuilder) AppendToolExecution(toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(previousMessages)+len(toolCalls)+1)
	for _, prev := range previousMessages {
		cm, ok := prev.(ChatMessage)
		if !ok {
			return nil, errForeignWireMessage(FamilyFlat, prev)
		}
		out = append(out, cm)
	}
	return appendFlatExecution(out, toolCalls, toolResults), nil
}

// appendFlatExecution appends the assistant tool-call message followed by
// its result messages. Results must directly follow the assistant
// tool_calls entry; the chat API ignores anything wedged between them.
func appendFlatExecution(out []WireMessage, toolCalls []model.ToolCall, toolResults []model.ToolResult) []WireMessage {
	if len(toolCalls) == 0 {
		return out
	}
	out = append(out, assistantChatMessage("", toolCalls))
	for i, res := range pairResults(toolCalls, toolResults) {
		out = append(out, toolResultChatMessage(orCallID(res.CallID, toolCalls[i].ID), res.Payload()))
	}
	return out
}

func assistantChatMessage(content string, toolCalls []model.ToolCall) ChatMessage {
	msg := ChatMessage{Role: "assistant", Content: content}
	for _, tc := range toolCalls {
		// The chat API wants a JSON object string; a nil map would
		// marshal to "null".
		args, err := json.Marshal(nonNilParams(tc.Parameters))
		if err != nil {
			args = []byte("{}")
		}
		msg.ToolCalls = append(msg.ToolCalls, ChatToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: ChatFunction{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return msg
}

func toolResultChatMessage(callID string, payload any) ChatMessage {
	return ChatMessage{
		Role:       "tool",
		Content:    marshalPayload(payload),
		ToolCallID: callID,
	}
}

// resolvedPayload renders a stored tool call's attached outcome for
// replay. Errors surface as data so the model saw its own failure.
func resolvedPayload(tc model.ToolCall) any {
	if tc.Error != "" {
		return map[string]any{"error": tc.Error}
	}
	return tc.Result
}

// marshalPayload serializes a result payload to the string content a
// role:tool message carries. Strings pass through unquoted to match the
// fine-tuning data distribution vendors trained on.
func marshalPayload(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

func orCallID(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}
