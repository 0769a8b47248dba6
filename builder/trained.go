package builder

import (
	"encoding/json"
	"strings"

	"llmbridge/model"
)

// TextMessage is the trained-format wire shape: plain role/content pairs
// with tool calls rendered as literal text inside assistant content.
// Locally hosted fine-tuned models were trained on this distribution and
// reject structured tool-call channels.
type TextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WireRole implements WireMessage.
func (m TextMessage) WireRole() string { return m.Role }

// TrainedBuilder renders conversations for locally hosted models that
// expect strict user/assistant alternation and literal tool-call markup.
//
// Two markups exist in the wild, recorded per call in
// model.ToolCall.SourceFormat:
//
//   - bracket: [{"name": "move_note", "arguments": {...}}]
//   - tag:     <tool_call>{"name": "move_note", "arguments": {...}}</tool_call>
//
// Replay must reproduce the exact markup the model emitted; a bracket
// model shown tag markup (or vice versa) degrades sharply. Tool results
// are injected as raw JSON text in a user turn with no envelope, matching
// the fine-tuning data.
type TrainedBuilder struct{}

// BuildContext implements ContextBuilder.BuildContext.
func (b *TrainedBuilder) BuildContext(conversation []model.ConversationMessage, systemPrompt string) ([]WireMessage, error) {
	seq := newAlternatingSequence(systemPrompt)

	for i, msg := range conversation {
		if !model.IsEligibleForContext(msg, i == len(conversation)-1) {
			continue
		}

		switch msg.Role {
		case model.RoleUser:
			seq.push("user", msg.Content)

		case model.RoleAssistant:
			seq.push("assistant", renderAssistantText(msg.Content, msg.ToolCalls))
			if results := resolvedRawResults(msg.ToolCalls); results != "" {
				seq.push("user", results)
			}

		case model.RoleTool:
			seq.push("user", msg.Content)
		}
	}

	return seq.messages(), nil
}

// BuildToolContinuation implements ContextBuilder.BuildToolContinuation.
//
// A user prompt that is already the trailing user message of the history
// is deduplicated rather than re-appended; re-sending it would both break
// alternation and double-prompt the model.
func (b *TrainedBuilder) BuildToolContinuation(userPrompt string, toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage, systemPrompt string) ([]WireMessage, error) {
	seq := newAlternatingSequence(systemPrompt)
	if err := seq.seed(previousMessages); err != nil {
		return nil, err
	}

	if userPrompt != "" && !seq.promptAlreadyLast(userPrompt) {
		seq.push("user", userPrompt)
	}

	appendTrainedExecution(seq, toolCalls, toolResults)
	return seq.messages(), nil
}

// AppendToolExecution implements ContextBuilder.AppendToolExecution.
func (b *TrainedBuilder) AppendToolExecution(toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage) ([]WireMessage, error) {
	seq := newAlternatingSequence("")
	if err := seq.seed(previousMessages); err != nil {
		return nil, err
	}
	appendTrainedExecution(seq, toolCalls, toolResults)
	return seq.messages(), nil
}

func appendTrainedExecution(seq *alternatingSequence, toolCalls []model.ToolCall, toolResults []model.ToolResult) {
	if len(toolCalls) == 0 {
		return
	}
	seq.push("assistant", renderAssistantText("", toolCalls))
	seq.push("user", rawResultsText(pairResults(toolCalls, toolResults)))
}

// alternatingSequence accumulates wire messages while enforcing strict
// role alternation: pushing a role equal to the trailing message's role
// merges the content into that message instead of appending a sibling.
type alternatingSequence struct {
	msgs []TextMessage
}

func newAlternatingSequence(systemPrompt string) *alternatingSequence {
	seq := &alternatingSequence{}
	if systemPrompt != "" {
		seq.msgs = append(seq.msgs, TextMessage{Role: "system", Content: systemPrompt})
	}
	return seq
}

func (s *alternatingSequence) seed(previousMessages []WireMessage) error {
	for _, prev := range previousMessages {
		tm, ok := prev.(TextMessage)
		if !ok {
			return errForeignWireMessage(FamilyTrained, prev)
		}
		s.push(tm.Role, tm.Content)
	}
	return nil
}

func (s *alternatingSequence) push(role, content string) {
	if n := len(s.msgs); n > 0 && s.msgs[n-1].Role == role {
		if content != "" {
			if s.msgs[n-1].Content != "" {
				s.msgs[n-1].Content += "\n" + content
			} else {
				s.msgs[n-1].Content = content
			}
		}
		return
	}
	s.msgs = append(s.msgs, TextMessage{Role: role, Content: content})
}

// promptAlreadyLast reports whether the trailing message is a user turn
// with exactly this text. Raw equality is knowingly fragile against
// prompts a user legitimately repeats verbatim; kept for parity with the
// training data handling.
func (s *alternatingSequence) promptAlreadyLast(prompt string) bool {
	n := len(s.msgs)
	return n > 0 && s.msgs[n-1].Role == "user" && s.msgs[n-1].Content == prompt
}

func (s *alternatingSequence) messages() []WireMessage {
	out := make([]WireMessage, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m
	}
	return out
}

// renderAssistantText renders assistant content plus tool-call markup.
// Bracket-format calls are grouped into one JSON array; tag-format calls
// are rendered one element each. Calls with no recorded format default to
// bracket, the more common fine-tune dialect.
func renderAssistantText(content string, toolCalls []model.ToolCall) string {
	var sections []string
	if content != "" {
		sections = append(sections, content)
	}

	var bracket []map[string]any
	for _, tc := range toolCalls {
		payload := map[string]any{
			"name":      tc.Name,
			"arguments": nonNilParams(tc.Parameters),
		}
		if tc.SourceFormat == model.FormatTag {
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			sections = append(sections, "<tool_call>"+string(data)+"</tool_call>")
			continue
		}
		bracket = append(bracket, payload)
	}

	if len(bracket) > 0 {
		data, err := json.Marshal(bracket)
		if err == nil {
			sections = append(sections, string(data))
		}
	}

	return strings.Join(sections, "\n")
}

// rawResultsText renders tool results as raw JSON with no envelope. A
// single result is emitted bare; multiple results as a JSON array.
func rawResultsText(results []model.ToolResult) string {
	if len(results) == 1 {
		return marshalPayload(results[0].Payload())
	}
	payloads := make([]any, len(results))
	for i, r := range results {
		payloads[i] = r.Payload()
	}
	return marshalPayload(payloads)
}

// resolvedRawResults renders stored, already-resolved calls for replay.
func resolvedRawResults(toolCalls []model.ToolCall) string {
	var payloads []any
	for _, tc := range toolCalls {
		if tc.Resolved() {
			payloads = append(payloads, resolvedPayload(tc))
		}
	}
	switch len(payloads) {
	case 0:
		return ""
	case 1:
		return marshalPayload(payloads[0])
	default:
		return marshalPayload(payloads)
	}
}

func nonNilParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return params
}
