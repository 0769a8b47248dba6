package model

import "time"

// ToolResult is the executed outcome of one ToolCall. The router produces
// one per call in a batch; builders carry them back to the model as wire
// messages.
type ToolResult struct {
	// CallID echoes the originating ToolCall.ID.
	CallID string `json:"call_id"`

	// Name echoes the flat callable name, for wire formats that address
	// results by function name rather than call id.
	Name string `json:"name"`

	Success bool   `json:"success"`
	Content any    `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`

	// Elapsed is the wall-clock execution time of the underlying tool.
	Elapsed time.Duration `json:"elapsed"`

	// SessionInstructions is a one-time payload attached by the execution
	// coordinator when a session is newly created or its id was
	// corrected. It tells the model which session id to use going
	// forward.
	SessionInstructions string `json:"session_instructions,omitempty"`
}

// Payload renders the value that rides back to the model. Failures are
// data, not exceptions: the error text is returned so the model can react
// to its own tool's failure on the next turn.
func (r ToolResult) Payload() any {
	if !r.Success && r.Error != "" {
		return map[string]any{"error": r.Error}
	}
	if r.SessionInstructions != "" {
		return map[string]any{
			"content":      r.Content,
			"instructions": r.SessionInstructions,
		}
	}
	if r.Content != nil {
		return r.Content
	}
	return map[string]any{}
}
