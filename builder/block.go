package builder

import (
	"llmbridge/model"
)

// BlockMessage is the structured-block wire shape: a role plus an array
// of typed content blocks. Tool-use blocks only ever appear on assistant
// messages; tool-result blocks only ever appear on user messages. JSON
// tags match the Anthropic messages schema.
type BlockMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one element of a BlockMessage's content array. Type is
// one of "text", "tool_use", "tool_result"; the remaining fields are
// populated per type.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// WireRole implements WireMessage.
func (m BlockMessage) WireRole() string { return m.Role }

// BlockBuilder renders conversations in the Anthropic-style block format.
//
// The system prompt is never emitted as a message: this family takes it
// out-of-band, so builders return only user/assistant messages and the
// transport attaches systemPrompt to the request's system parameter. The
// builder still accepts systemPrompt so that the ContextBuilder contract
// stays uniform; it is prepended as a text block on the first user turn
// when no other channel exists.
type BlockBuilder struct{}

// BuildContext implements ContextBuilder.BuildContext.
func (b *BlockBuilder) BuildContext(conversation []model.ConversationMessage, systemPrompt string) ([]WireMessage, error) {
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
			out = append(out, BlockMessage{
				Role:    "user",
				Content: []ContentBlock{{Type: "text", Text: content}},
			})

		case model.RoleAssistant:
			out = append(out, assistantBlockMessage(msg.Content, msg.ToolCalls))
			if results := resolvedResultBlocks(msg.ToolCalls); len(results) > 0 {
				out = append(out, BlockMessage{Role: "user", Content: results})
			}

		case model.RoleTool:
			id := ""
			if len(msg.ToolCalls) > 0 {
				id = msg.ToolCalls[0].ID
			}
			out = append(out, BlockMessage{
				Role: "user",
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: id,
					Content:   msg.Content,
				}},
			})
		}
	}

	return out, nil
}

// BuildToolContinuation implements ContextBuilder.BuildToolContinuation.
func (b *BlockBuilder) BuildToolContinuation(userPrompt string, toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage, systemPrompt string) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(previousMessages)+3)
	for _, prev := range previousMessages {
		bm, ok := prev.(BlockMessage)
		if !ok {
			return nil, errForeignWireMessage(FamilyBlock, prev)
		}
		out = append(out, bm)
	}

	if userPrompt != "" {
		content := userPrompt
		if len(out) == 0 && systemPrompt != "" {
			content = systemPrompt + "\n\n" + content
		}
		out = append(out, BlockMessage{
			Role:    "user",
			Content: []ContentBlock{{Type: "text", Text: content}},
		})
	}

	return appendBlockExecution(out, toolCalls, toolResults), nil
}

// AppendToolExecution implements ContextBuilder.AppendToolExecution.
func (b *BlockBuilder) AppendToolExecution(toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(previousMessages)+2)
	for _, prev := range previousMessages {
		bm, ok := prev.(BlockMessage)
		if !ok {
			return nil, errForeignWireMessage(FamilyBlock, prev)
		}
		out = append(out, bm)
	}
	return appendBlockExecution(out, toolCalls, toolResults), nil
}

// appendBlockExecution appends one assistant message holding the tool_use
// blocks and one user message holding all tool_result blocks. The two
// block kinds are never mixed into the same role.
func appendBlockExecution(out []WireMessage, toolCalls []model.ToolCall, toolResults []model.ToolResult) []WireMessage {
	if len(toolCalls) == 0 {
		return out
	}

	out = append(out, assistantBlockMessage("", toolCalls))

	results := make([]ContentBlock, 0, len(toolCalls))
	for i, res := range pairResults(toolCalls, toolResults) {
		results = append(results, ContentBlock{
			Type:      "tool_result",
			ToolUseID: orCallID(res.CallID, toolCalls[i].ID),
			Content:   res.Payload(),
			IsError:   !res.Success && res.Error != "",
		})
	}
	return append(out, BlockMessage{Role: "user", Content: results})
}

func assistantBlockMessage(content string, toolCalls []model.ToolCall) BlockMessage {
	blocks := make([]ContentBlock, 0, len(toolCalls)+1)
	if content != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: content})
	}
	for _, tc := range toolCalls {
		input := tc.Parameters
		if input == nil {
			input = map[string]any{}
		}
		blocks = append(blocks, ContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: input,
		})
	}
	if len(blocks) == 0 {
		blocks = append(blocks, ContentBlock{Type: "text", Text: ""})
	}
	return BlockMessage{Role: "assistant", Content: blocks}
}

// resolvedResultBlocks renders result blocks for a stored assistant
// turn's already-resolved calls during full replay.
func resolvedResultBlocks(toolCalls []model.ToolCall) []ContentBlock {
	var blocks []ContentBlock
	for _, tc := range toolCalls {
		if !tc.Resolved() {
			continue
		}
		blocks = append(blocks, ContentBlock{
			Type:      "tool_result",
			ToolUseID: tc.ID,
			Content:   resolvedPayload(tc),
			IsError:   tc.Error != "",
		})
	}
	return blocks
}
