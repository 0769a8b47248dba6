// Package builder translates the canonical conversation model into
// provider-correct wire message sequences.
//
// LLMBRIDGE supports four wire-format families through a common
// ContextBuilder interface. This keeps the hosting chat loop
// provider-agnostic: no call site outside NewContextBuilder branches on
// provider identity.
//
// # Wire Families
//
//   - builder.FlatBuilder: OpenAI-compatible role/array messages with a
//     tool_calls array and separate role:tool result messages
//   - builder.BlockBuilder: Anthropic-style messages whose content is an
//     array of text/tool_use/tool_result blocks
//   - builder.PartsBuilder: Gemini-style user/model roles with parts
//     arrays of text/functionCall/functionResponse
//   - builder.TrainedBuilder: locally hosted models that emit tool calls
//     as literal text markup inside ordinary assistant messages
//
// # Wire Messages
//
// Each builder returns its own concrete message type behind the
// WireMessage interface. This core owns only these in-memory shapes; a
// transport layer serializes them to actual JSON bodies per vendor. The
// concrete types carry JSON tags matching each vendor's schema so that
// serialization is a plain json.Marshal.
//
// # Usage
//
//	b, err := builder.NewContextBuilder(builder.FamilyFlat)
//	if err != nil {
//	    // unknown provider family
//	}
//	wire, err := b.BuildContext(conversation, "You are a helpful assistant.")
package builder

import (
	"errors"
	"fmt"

	"llmbridge/model"
)

// ProviderFamily identifies a wire-format family.
type ProviderFamily string

const (
	// FamilyFlat is the OpenAI-compatible flat role/array format, also
	// used by OpenRouter and most self-hosted gateways.
	FamilyFlat ProviderFamily = "flat"

	// FamilyBlock is the Anthropic-style nested content-block format.
	FamilyBlock ProviderFamily = "block"

	// FamilyParts is the Gemini-style remapped-role parts format.
	FamilyParts ProviderFamily = "parts"

	// FamilyTrained is the literal-text tool-call markup format used by
	// locally hosted fine-tuned models.
	FamilyTrained ProviderFamily = "trained"
)

// ErrUnsupportedProvider is returned by NewContextBuilder for provider
// identifiers with no registered builder. The factory fails closed:
// silently picking the wrong builder produces requests the vendor API
// rejects.
var ErrUnsupportedProvider = errors.New("unsupported provider family")

// WireMessage is one provider-shaped message. Concrete types are
// per-family; WireRole exposes the wire-level role string so callers can
// apply role-based rules (alternation checks, system filtering) without
// knowing the concrete shape.
type WireMessage interface {
	WireRole() string
}

// ContextBuilder renders canonical conversations into wire messages for
// one provider family. Implementations are pure: no I/O, no shared state,
// deterministic over their inputs.
type ContextBuilder interface {
	// BuildContext replays a stored conversation for an initial or
	// resumed request. Messages failing the eligibility rules are
	// dropped. systemPrompt may be empty.
	BuildContext(conversation []model.ConversationMessage, systemPrompt string) ([]WireMessage, error)

	// BuildToolContinuation builds the next request after a round of tool
	// execution. toolCalls and toolResults are parallel: toolResults[i]
	// is the executed outcome of toolCalls[i]. previousMessages, when
	// non-nil, seeds the sequence with prior wire-format history and must
	// contain this builder's own message types.
	BuildToolContinuation(userPrompt string, toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage, systemPrompt string) ([]WireMessage, error)

	// AppendToolExecution is BuildToolContinuation without a new user
	// turn; used when the tool-calling loop recurses with no fresh user
	// input. System handling belongs to BuildToolContinuation alone: it
	// takes the systemPrompt and may drop stale system entries from
	// previousMessages before re-seeding, while AppendToolExecution has
	// no prompt to re-seed from and preserves previousMessages verbatim,
	// system entries included.
	AppendToolExecution(toolCalls []model.ToolCall, toolResults []model.ToolResult, previousMessages []WireMessage) ([]WireMessage, error)
}

// NewContextBuilder selects the builder for a provider family identifier.
// Recognized identifiers cover both family names and the common provider
// ids that map onto them. Unknown identifiers return
// ErrUnsupportedProvider.
func NewContextBuilder(family ProviderFamily) (ContextBuilder, error) {
	switch family {
	case FamilyFlat, "openai", "openrouter":
		return &FlatBuilder{}, nil
	case FamilyBlock, "anthropic":
		return &BlockBuilder{}, nil
	case FamilyParts, "gemini", "google":
		return &PartsBuilder{}, nil
	case FamilyTrained, "local", "ollama":
		return &TrainedBuilder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, family)
	}
}

// pairResults aligns results with calls. Results are matched positionally;
// a short results slice is tolerated by synthesizing an empty failed
// outcome, so a builder never indexes past the caller's data.
func pairResults(calls []model.ToolCall, results []model.ToolResult) []model.ToolResult {
	paired := make([]model.ToolResult, len(calls))
	for i, call := range calls {
		if i < len(results) {
			paired[i] = results[i]
			if paired[i].CallID == "" {
				paired[i].CallID = call.ID
			}
			if paired[i].Name == "" {
				paired[i].Name = call.Name
			}
			continue
		}
		paired[i] = model.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  "tool produced no result",
		}
	}
	return paired
}

// errForeignWireMessage is the fatal builder error for previousMessages
// containing another family's types.
func errForeignWireMessage(family ProviderFamily, msg WireMessage) error {
	return fmt.Errorf("previous message %T does not belong to the %s wire family", msg, family)
}
