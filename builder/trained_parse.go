package builder

import (
	"encoding/json"
	"regexp"
	"strings"

	"llmbridge/model"
)

// Trained-format models emit tool calls as literal text. These parsers
// recover them from raw assistant output and record which markup the
// model used so that replay round-trips the same dialect.

var tagCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)

// markupCall is the JSON body both dialects share.
type markupCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseToolCallMarkup extracts tool calls from raw assistant text, trying
// the tag dialect first and falling back to the bracket dialect. Returns
// nil when the text contains no recognizable markup.
func ParseToolCallMarkup(text string) []model.ToolCall {
	if calls := ParseTagToolCalls(text); len(calls) > 0 {
		return calls
	}
	return ParseBracketToolCalls(text)
}

// ParseTagToolCalls extracts <tool_call>{...}</tool_call> elements.
// Elements whose body is not valid JSON are skipped rather than failing
// the whole parse; models routinely garble one call in a batch.
func ParseTagToolCalls(text string) []model.ToolCall {
	matches := tagCallPattern.FindAllStringSubmatch(text, -1)
	var calls []model.ToolCall
	for _, m := range matches {
		var body markupCall
		if err := json.Unmarshal([]byte(m[1]), &body); err != nil {
			continue
		}
		if body.Name == "" {
			continue
		}
		calls = append(calls, model.ToolCall{
			Name:         body.Name,
			Parameters:   body.Arguments,
			SourceFormat: model.FormatTag,
		})
	}
	return calls
}

// ParseBracketToolCalls extracts a bracket-delimited JSON array of calls.
// The array may be embedded in surrounding prose; the parser scans for
// the first '[' that opens a JSON array of objects carrying a "name"
// field.
func ParseBracketToolCalls(text string) []model.ToolCall {
	for start := strings.IndexByte(text, '['); start != -1; start = nextIndex(text, start) {
		candidate := balancedSlice(text[start:], '[', ']')
		if candidate == "" {
			continue
		}
		var bodies []markupCall
		if err := json.Unmarshal([]byte(candidate), &bodies); err != nil {
			continue
		}
		var calls []model.ToolCall
		for _, body := range bodies {
			if body.Name == "" {
				continue
			}
			calls = append(calls, model.ToolCall{
				Name:         body.Name,
				Parameters:   body.Arguments,
				SourceFormat: model.FormatBracket,
			})
		}
		if len(calls) > 0 {
			return calls
		}
	}
	return nil
}

func nextIndex(text string, after int) int {
	idx := strings.IndexByte(text[after+1:], '[')
	if idx == -1 {
		return -1
	}
	return after + 1 + idx
}

// balancedSlice returns the substring from the opening delimiter to its
// balanced closer, respecting JSON string literals. Empty when the text
// ends before the delimiter closes.
func balancedSlice(text string, open, close byte) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
