// Package model defines the provider-agnostic conversation types shared by
// every context builder.
//
// LLMBRIDGE supports multiple wire-format families (flat-array, structured
// blocks, remapped roles, trained text markup) from one canonical message
// representation. This package owns that representation and the eligibility
// rules that decide which stored messages may be replayed to a provider.
//
// # Why a Canonical Model?
//
// The canonical model exists to:
//   - Keep conversation storage independent of any one vendor's wire shape
//   - Let the builder layer be pure functions over well-defined inputs
//   - Make the replay-eligibility rules testable in isolation
//
// The types here carry no behavior beyond small predicates. All provider
// branching lives behind the builder.ContextBuilder interface.
package model

import "time"

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MessageState tracks a message through its lifecycle. Only messages in
// StateComplete (or StateDraft/StateAborted when they are the trailing
// turn) can be replayed upstream; see IsEligibleForContext.
type MessageState string

const (
	StateDraft     MessageState = "draft"
	StateStreaming MessageState = "streaming"
	StateComplete  MessageState = "complete"
	StateAborted   MessageState = "aborted"
	StateInvalid   MessageState = "invalid"
)

// ToolCallFormat records which literal textual markup a locally hosted
// model used to emit a tool call. Trained-format replay must render the
// call back in the same markup the model produced.
type ToolCallFormat string

const (
	// FormatNative means the call arrived through the vendor's structured
	// tool-call channel, not as literal text.
	FormatNative ToolCallFormat = ""

	// FormatBracket is a JSON array of calls between square brackets:
	// [{"name": "...", "arguments": {...}}]
	FormatBracket ToolCallFormat = "bracket"

	// FormatTag is one XML-like element per call:
	// <tool_call>{"name": "...", "arguments": {...}}</tool_call>
	FormatTag ToolCallFormat = "tag"
)

// ToolCall is one invocation issued by the model within an assistant turn.
type ToolCall struct {
	// ID correlates the invocation with its result inside the wire
	// protocol. Opaque; vendors mint their own formats.
	ID string `json:"id"`

	// Name is the flat callable name as the model issued it.
	Name string `json:"name"`

	// Parameters is the argument bag. No shape is assumed beyond what the
	// resolved tool's schema declares.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Result and Error are set after execution. Success distinguishes an
	// empty result from a failed call.
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success,omitempty"`

	// Reasoning holds provider-specific chain-of-thought text attached to
	// the call, when the vendor exposes it.
	Reasoning string `json:"reasoning,omitempty"`

	// ThoughtSignature is an opaque vendor token that must be echoed back
	// verbatim on the next turn. Dropping it invalidates a thinking
	// model's internal reasoning state.
	ThoughtSignature string `json:"thought_signature,omitempty"`

	// SourceFormat records the literal markup a trained-format model used
	// so replay can round-trip it. FormatNative for structured channels.
	SourceFormat ToolCallFormat `json:"source_format,omitempty"`
}

// Resolved reports whether the call has an outcome attached, either a
// result or an error. An assistant turn is replayable only once every one
// of its calls is resolved.
func (tc ToolCall) Resolved() bool {
	return tc.Result != nil || tc.Error != ""
}

// ConversationMessage is one turn of a stored conversation.
type ConversationMessage struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	ToolCalls []ToolCall   `json:"tool_calls,omitempty"`
	State     MessageState `json:"state"`
	Timestamp time.Time    `json:"timestamp"`
}

// HasToolCalls reports whether the message carries at least one tool call.
func (m ConversationMessage) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// AllToolCallsResolved reports whether every tool call on the message has
// a result or an error. True for messages without tool calls.
func (m ConversationMessage) AllToolCallsResolved() bool {
	for _, tc := range m.ToolCalls {
		if !tc.Resolved() {
			return false
		}
	}
	return true
}
