package builder

import (
	"strings"
	"testing"

	"llmbridge/model"
)

func textMessages(t *testing.T, wire []WireMessage) []TextMessage {
	t.Helper()
	out := make([]TextMessage, len(wire))
	for i, m := range wire {
		tm, ok := m.(TextMessage)
		if !ok {
			t.Fatalf("message %d is %T, want TextMessage", i, m)
		}
		out[i] = tm
	}
	return out
}

func TestTrainedAlternationMergesSameRoleTurns(t *testing.T) {
	conversation := []model.ConversationMessage{
		{Role: model.RoleUser, Content: "First question.", State: model.StateComplete},
		{Role: model.RoleUser, Content: "Second question.", State: model.StateComplete},
		{Role: model.RoleAssistant, Content: "Answer.", State: model.StateComplete},
	}

	b := &TrainedBuilder{}
	wire, err := b.BuildContext(conversation, "Be brief.")
	if err != nil {
		t.Fatal(err)
	}

	msgs := textMessages(t, wire)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (system, merged user, assistant)", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Role == msgs[i-1].Role {
			t.Fatalf("alternation broken at %d: %s follows %s", i, msgs[i].Role, msgs[i-1].Role)
		}
	}
	if msgs[1].Content != "First question.\nSecond question." {
		t.Errorf("merged user content = %q", msgs[1].Content)
	}
}

func TestTrainedDuplicatePromptNotReappended(t *testing.T) {
	previous := []WireMessage{
		TextMessage{Role: "user", Content: "Move my note."},
	}
	calls := []model.ToolCall{{ID: "c1", Name: "vaultManager_moveNote"}}
	results := []model.ToolResult{{CallID: "c1", Success: true, Content: "moved"}}

	b := &TrainedBuilder{}
	wire, err := b.BuildToolContinuation("Move my note.", calls, results, previous, "")
	if err != nil {
		t.Fatal(err)
	}

	msgs := textMessages(t, wire)
	userTurns := 0
	for _, m := range msgs {
		if m.Role == "user" && strings.Contains(m.Content, "Move my note.") {
			userTurns++
		}
	}
	if userTurns != 1 {
		t.Errorf("prompt appears in %d user turns, want 1", userTurns)
	}
}

func TestTrainedBracketMarkupGroupsCalls(t *testing.T) {
	calls := []model.ToolCall{
		{ID: "c1", Name: "move_note", Parameters: map[string]any{"note": "a.md"}, SourceFormat: model.FormatBracket},
		{ID: "c2", Name: "list_notes", SourceFormat: model.FormatBracket},
	}
	results := []model.ToolResult{
		{CallID: "c1", Success: true, Content: "moved"},
		{CallID: "c2", Success: true, Content: []any{"a.md"}},
	}

	b := &TrainedBuilder{}
	wire, err := b.AppendToolExecution(calls, results, nil)
	if err != nil {
		t.Fatal(err)
	}

	msgs := textMessages(t, wire)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	asst := msgs[0]
	if asst.Role != "assistant" {
		t.Fatalf("role = %q, want assistant", asst.Role)
	}
	if !strings.HasPrefix(asst.Content, "[") || !strings.HasSuffix(asst.Content, "]") {
		t.Errorf("bracket calls should render as one JSON array: %q", asst.Content)
	}
	if strings.Contains(asst.Content, "<tool_call>") {
		t.Errorf("bracket dialect rendered tag markup: %q", asst.Content)
	}

	// The rendered markup must parse back to the same calls.
	parsed := ParseToolCallMarkup(asst.Content)
	if len(parsed) != 2 {
		t.Fatalf("round-trip parsed %d calls, want 2", len(parsed))
	}
	if parsed[0].Name != "move_note" || parsed[0].SourceFormat != model.FormatBracket {
		t.Errorf("round-trip call 0: %+v", parsed[0])
	}
}

func TestTrainedTagMarkupPerCall(t *testing.T) {
	calls := []model.ToolCall{
		{ID: "c1", Name: "move_note", Parameters: map[string]any{"note": "a.md"}, SourceFormat: model.FormatTag},
		{ID: "c2", Name: "list_notes", SourceFormat: model.FormatTag},
	}
	results := []model.ToolResult{
		{CallID: "c1", Success: true, Content: "moved"},
		{CallID: "c2", Success: true, Content: "[]"},
	}

	b := &TrainedBuilder{}
	wire, err := b.AppendToolExecution(calls, results, nil)
	if err != nil {
		t.Fatal(err)
	}

	msgs := textMessages(t, wire)
	asst := msgs[0].Content
	if strings.Count(asst, "<tool_call>") != 2 || strings.Count(asst, "</tool_call>") != 2 {
		t.Errorf("tag calls should render one element each: %q", asst)
	}

	parsed := ParseToolCallMarkup(asst)
	if len(parsed) != 2 {
		t.Fatalf("round-trip parsed %d calls, want 2", len(parsed))
	}
	for _, p := range parsed {
		if p.SourceFormat != model.FormatTag {
			t.Errorf("round-trip format = %q, want tag", p.SourceFormat)
		}
	}
}

func TestTrainedResultsAreRawJSON(t *testing.T) {
	calls := []model.ToolCall{{ID: "c1", Name: "move_note"}}
	results := []model.ToolResult{{CallID: "c1", Success: true, Content: map[string]any{"moved": true}}}

	b := &TrainedBuilder{}
	wire, err := b.AppendToolExecution(calls, results, nil)
	if err != nil {
		t.Fatal(err)
	}

	msgs := textMessages(t, wire)
	last := msgs[len(msgs)-1]
	if last.Role != "user" {
		t.Fatalf("result turn role = %q, want user", last.Role)
	}
	if last.Content != `{"moved":true}` {
		t.Errorf("single result should be bare raw JSON, got %q", last.Content)
	}
}

func TestTrainedMultipleResultsRenderAsArray(t *testing.T) {
	calls := []model.ToolCall{
		{ID: "c1", Name: "move_note"},
		{ID: "c2", Name: "list_notes"},
	}
	results := []model.ToolResult{
		{CallID: "c1", Success: true, Content: "moved"},
		{CallID: "c2", Error: "timed out"},
	}

	b := &TrainedBuilder{}
	wire, err := b.AppendToolExecution(calls, results, nil)
	if err != nil {
		t.Fatal(err)
	}

	msgs := textMessages(t, wire)
	last := msgs[len(msgs)-1].Content
	if !strings.HasPrefix(last, "[") || !strings.Contains(last, `"error":"timed out"`) {
		t.Errorf("multiple results should render as a JSON array with error data: %q", last)
	}
}

func TestTrainedRejectsForeignWireMessages(t *testing.T) {
	b := &TrainedBuilder{}
	previous := []WireMessage{PartsMessage{Role: "user"}}
	if _, err := b.AppendToolExecution(nil, nil, previous); err == nil {
		t.Fatal("expected an error for foreign wire message types")
	}
}
