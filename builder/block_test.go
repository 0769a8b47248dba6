package builder

import (
	"strings"
	"testing"

	"llmbridge/model"
)

func blockMessages(t *testing.T, wire []WireMessage) []BlockMessage {
	t.Helper()
	out := make([]BlockMessage, len(wire))
	for i, m := range wire {
		bm, ok := m.(BlockMessage)
		if !ok {
			t.Fatalf("message %d is %T, want BlockMessage", i, m)
		}
		out[i] = bm
	}
	return out
}

func TestBlockBuildContextFoldsSystemIntoFirstUserTurn(t *testing.T) {
	conversation := []model.ConversationMessage{
		{Role: model.RoleUser, Content: "Hello", State: model.StateComplete},
		{Role: model.RoleAssistant, Content: "Hi there.", State: model.StateComplete},
	}

	b := &BlockBuilder{}
	wire, err := b.BuildContext(conversation, "You are terse.")
	if err != nil {
		t.Fatal(err)
	}

	msgs := blockMessages(t, wire)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	for _, m := range msgs {
		if m.Role == "system" {
			t.Fatal("block format must never emit a system message")
		}
	}
	first := msgs[0].Content[0].Text
	if !strings.HasPrefix(first, "You are terse.") || !strings.Contains(first, "Hello") {
		t.Errorf("system prompt not folded into first user turn: %q", first)
	}
}

func TestBlockToolUseAndResultRoles(t *testing.T) {
	calls := []model.ToolCall{
		{ID: "c1", Name: "vaultManager_moveNote", Parameters: map[string]any{"note": "a.md"}},
		{ID: "c2", Name: "vaultManager_listNotes"},
	}
	results := []model.ToolResult{
		{CallID: "c1", Success: true, Content: "moved"},
		{CallID: "c2", Error: "timed out"},
	}

	b := &BlockBuilder{}
	wire, err := b.AppendToolExecution(calls, results, nil)
	if err != nil {
		t.Fatal(err)
	}

	msgs := blockMessages(t, wire)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (assistant tool_use + user tool_result)", len(msgs))
	}

	asst := msgs[0]
	if asst.Role != "assistant" {
		t.Fatalf("tool_use blocks must ride an assistant message, got role %q", asst.Role)
	}
	if len(asst.Content) != 2 {
		t.Fatalf("got %d tool_use blocks, want 2", len(asst.Content))
	}
	for _, blk := range asst.Content {
		if blk.Type != "tool_use" {
			t.Errorf("assistant block type = %q", blk.Type)
		}
	}
	if asst.Content[1].Input == nil {
		t.Error("nil parameters should render as an empty input object")
	}

	user := msgs[1]
	if user.Role != "user" {
		t.Fatalf("tool_result blocks must ride a user message, got role %q", user.Role)
	}
	if len(user.Content) != 2 {
		t.Fatalf("got %d tool_result blocks, want 2", len(user.Content))
	}
	if user.Content[0].ToolUseID != "c1" || user.Content[0].IsError {
		t.Errorf("first result block: %+v", user.Content[0])
	}
	if user.Content[1].ToolUseID != "c2" || !user.Content[1].IsError {
		t.Errorf("failed call should set is_error: %+v", user.Content[1])
	}
}

func TestBlockReplayRendersResolvedResults(t *testing.T) {
	conversation := []model.ConversationMessage{
		{Role: model.RoleUser, Content: "Move it.", State: model.StateComplete},
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				ID: "c1", Name: "vaultManager_moveNote", Result: "moved", Success: true,
			}},
			State: model.StateComplete,
		},
		{Role: model.RoleAssistant, Content: "Done.", State: model.StateComplete},
	}

	b := &BlockBuilder{}
	wire, err := b.BuildContext(conversation, "")
	if err != nil {
		t.Fatal(err)
	}

	msgs := blockMessages(t, wire)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[1].Role != "assistant" || msgs[1].Content[0].Type != "tool_use" {
		t.Errorf("replayed call: %+v", msgs[1])
	}
	if msgs[2].Role != "user" || msgs[2].Content[0].Type != "tool_result" {
		t.Errorf("replayed result: %+v", msgs[2])
	}
}

func TestBlockRejectsForeignWireMessages(t *testing.T) {
	b := &BlockBuilder{}
	previous := []WireMessage{ChatMessage{Role: "user", Content: "hi"}}
	if _, err := b.BuildToolContinuation("next", nil, nil, previous, ""); err == nil {
		t.Fatal("expected an error for foreign wire message types")
	}
}
