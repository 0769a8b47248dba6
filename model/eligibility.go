package model

import "strings"

// IsEligibleForContext reports whether a stored message may be replayed to
// a provider.
//
// The rules:
//   - A message in StateStreaming or StateInvalid is never eligible; it is
//     either still being produced or known-bad.
//   - A user message with empty or whitespace-only content is never
//     eligible; vendor APIs reject blank user turns.
//   - An assistant message carrying tool calls is eligible only once every
//     call has a result or an error attached, regardless of position. A
//     turn with a dangling call is omitted until its result arrives; a
//     vendor API would reject the malformed turn.
//
// isLast marks the trailing message of the conversation. The trailing
// assistant turn is exempt from the empty-content rule only, because it
// represents the turn currently being produced; any EARLIER empty
// assistant message is dropped instead of sent.
//
// The predicate is deterministic and total: it never panics and consults
// nothing beyond its arguments.
func IsEligibleForContext(m ConversationMessage, isLast bool) bool {
	switch m.State {
	case StateStreaming, StateInvalid:
		return false
	}

	switch m.Role {
	case RoleUser:
		return strings.TrimSpace(m.Content) != ""

	case RoleAssistant:
		if m.HasToolCalls() {
			return m.AllToolCallsResolved()
		}
		if isLast {
			return true
		}
		return strings.TrimSpace(m.Content) != ""

	case RoleTool:
		return true

	default:
		// Unknown roles are not replayable; builders would have no wire
		// mapping for them.
		return false
	}
}

// EligibleMessages filters a conversation down to the messages that may be
// replayed, applying the trailing-message exemption to the final entry.
func EligibleMessages(messages []ConversationMessage) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(messages))
	for i, m := range messages {
		if IsEligibleForContext(m, i == len(messages)-1) {
			out = append(out, m)
		}
	}
	return out
}
