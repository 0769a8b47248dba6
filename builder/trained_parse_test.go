package builder

import (
	"testing"

	"llmbridge/model"
)

func TestParseTagToolCalls(t *testing.T) {
	text := `Let me move that for you.
<tool_call>{"name": "move_note", "arguments": {"note": "a.md", "dest": "archive/"}}</tool_call>
<tool_call>not json</tool_call>
<tool_call>{"name": "list_notes", "arguments": {}}</tool_call>`

	calls := ParseTagToolCalls(text)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2 (garbled element skipped)", len(calls))
	}
	if calls[0].Name != "move_note" || calls[0].Parameters["dest"] != "archive/" {
		t.Errorf("call 0: %+v", calls[0])
	}
	if calls[1].Name != "list_notes" {
		t.Errorf("call 1: %+v", calls[1])
	}
	for _, c := range calls {
		if c.SourceFormat != model.FormatTag {
			t.Errorf("source format = %q, want tag", c.SourceFormat)
		}
	}
}

func TestParseBracketToolCalls(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "bare array",
			text: `[{"name": "move_note", "arguments": {"note": "a.md"}}]`,
			want: 1,
		},
		{
			name: "array embedded in prose",
			text: `Sure, executing now: [{"name": "move_note", "arguments": {"note": "a.md"}}] done.`,
			want: 1,
		},
		{
			name: "brackets inside string literals do not confuse the scan",
			text: `[{"name": "move_note", "arguments": {"note": "[draft].md"}}]`,
			want: 1,
		},
		{
			name: "plain prose with brackets",
			text: `Arrays in Go are written as [3]int{1, 2, 3}.`,
			want: 0,
		},
		{
			name: "no markup",
			text: `The answer is 4.`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ParseBracketToolCalls(tt.text)
			if len(calls) != tt.want {
				t.Fatalf("got %d calls, want %d", len(calls), tt.want)
			}
			for _, c := range calls {
				if c.SourceFormat != model.FormatBracket {
					t.Errorf("source format = %q, want bracket", c.SourceFormat)
				}
			}
		})
	}
}

func TestParseToolCallMarkupPrefersTagDialect(t *testing.T) {
	text := `<tool_call>{"name": "move_note", "arguments": {}}</tool_call>
[{"name": "list_notes", "arguments": {}}]`

	calls := ParseToolCallMarkup(text)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].SourceFormat != model.FormatTag {
		t.Errorf("tag dialect should win when both are present, got %q", calls[0].SourceFormat)
	}
}

func TestBalancedSliceUnterminated(t *testing.T) {
	if got := balancedSlice(`[{"name": "x"`, '[', ']'); got != "" {
		t.Errorf("unterminated array should yield empty, got %q", got)
	}
}
