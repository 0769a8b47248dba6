// Package router resolves model-issued tool invocations against the
// capability registry and executes them.
//
// A flat tool name arriving from the model is resolved through three
// addressing modes, in precedence order:
//
//  1. Discovery/execution pair: the fixed names list_capabilities (returns
//     the capability catalog) and use_capability (executes a batch of
//     calls against it). The model calls discovery once and caches the
//     catalog for the session.
//  2. Arguments-carried: the tool name names an agent and the operation
//     rides inside the arguments as "mode".
//  3. Legacy flat-name: agentName_operationName, split on the FIRST
//     underscore; everything after it is the operation name even when it
//     contains further underscores.
//
// Failures of one call in a batch never abort sibling calls: each call's
// outcome is collected independently.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"llmbridge/capability"
	"llmbridge/config"
	"llmbridge/coordinator"
	"llmbridge/model"
)

// Fixed names of the discovery/execution addressing pair.
const (
	DiscoveryToolName = "list_capabilities"
	ExecuteToolName   = "use_capability"
)

var (
	// ErrUnknownTool means no addressing mode could resolve the name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments means the argument payload was not parseable.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// ExecutionContext carries caller-supplied session identity. Explicit
// values here take precedence over anything embedded in the model's
// arguments.
type ExecutionContext struct {
	SessionID   string
	WorkspaceID string
}

// Router resolves and executes tool invocations.
type Router struct {
	registry    *capability.Registry
	coordinator *coordinator.Coordinator
}

// New creates a router over a registry and an execution coordinator.
func New(registry *capability.Registry, coord *coordinator.Coordinator) *Router {
	return &Router{registry: registry, coordinator: coord}
}

// ExecuteTool resolves one flat tool name and executes it. The returned
// result is always populated; resolution and execution failures become
// failure results, never Go errors, so a batch caller can treat every
// entry uniformly.
func (r *Router) ExecuteTool(ctx context.Context, callID, name string, args map[string]any, execCtx ExecutionContext) model.ToolResult {
	args = r.normalizeArgs(args, execCtx)

	switch name {
	case DiscoveryToolName:
		return r.discover(ctx, callID, args)
	case ExecuteToolName:
		return r.executeBatchArgument(ctx, callID, args, execCtx)
	}

	agentName, operation, err := r.resolve(name, args)
	if err != nil {
		return failure(callID, name, err)
	}
	return r.run(ctx, callID, name, agentName, operation, args)
}

// ExecuteToolBatch executes a batch of calls sequentially. Tool side
// effects are not assumed commutative, so calls within one batch never
// interleave; isolation means a failed entry still leaves its siblings'
// outcomes intact.
func (r *Router) ExecuteToolBatch(ctx context.Context, calls []model.ToolCall, execCtx ExecutionContext) []model.ToolResult {
	results := make([]model.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.ExecuteTool(ctx, call.ID, call.Name, call.Parameters, execCtx))
	}
	return results
}

// resolve maps a flat name to an agent/operation pair via the
// arguments-carried and legacy addressing modes.
func (r *Router) resolve(name string, args map[string]any) (agentName, operation string, err error) {
	if mode, ok := args["mode"].(string); ok && mode != "" && r.registry.Known(name) {
		return name, mode, nil
	}

	if idx := strings.Index(name, "_"); idx > 0 && idx < len(name)-1 {
		return name[:idx], name[idx+1:], nil
	}

	return "", "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// run resolves the agent and tool in the registry and executes through
// the coordinator.
func (r *Router) run(ctx context.Context, callID, name, agentName, operation string, args map[string]any) model.ToolResult {
	agent, err := r.registry.GetAgentAsync(ctx, agentName)
	if err != nil {
		if errors.Is(err, capability.ErrAgentNotFound) {
			// The legacy split may have guessed wrong; report the full
			// input the router could not parse, not the fragment.
			err = fmt.Errorf("%w: %q (no agent %q)", ErrUnknownTool, name, agentName)
		}
		return failure(callID, name, err)
	}

	tool, ok := agent.Tool(operation)
	if !ok {
		return failure(callID, name, fmt.Errorf("%w: agent %q has no tool %q", capability.ErrToolNotFound, agentName, operation))
	}

	if err := validateRequired(tool, args); err != nil {
		return failure(callID, name, err)
	}

	if config.Debug {
		config.DebugLog.Printf("[Router] Executing %s/%s (call %s)", agentName, operation, callID)
	}

	return r.coordinator.Run(ctx, tool, coordinator.Invocation{
		CallID: callID,
		Name:   name,
		Args:   args,
	})
}

// discover returns the aggregated capability catalog, optionally filtered
// by a fuzzy query.
func (r *Router) discover(ctx context.Context, callID string, args map[string]any) model.ToolResult {
	catalog, err := r.registry.Catalog(ctx)
	if err != nil {
		return failure(callID, DiscoveryToolName, err)
	}

	if query, ok := args["query"].(string); ok && query != "" {
		catalog = capability.SearchCatalog(catalog, query)
	}

	return model.ToolResult{
		CallID:  callID,
		Name:    DiscoveryToolName,
		Success: true,
		Content: map[string]any{"tools": catalog},
	}
}

// executeBatchArgument handles the execution half of the discovery pair:
// the arguments carry a "calls" array of {name, arguments} entries that
// execute as a sequential batch. The batch's outcomes are the result
// content; a failed entry never blocks its siblings.
func (r *Router) executeBatchArgument(ctx context.Context, callID string, args map[string]any, execCtx ExecutionContext) model.ToolResult {
	entries, err := parseBatchCalls(args)
	if err != nil {
		return failure(callID, ExecuteToolName, err)
	}

	outcomes := r.ExecuteToolBatch(ctx, entries, execCtx)
	return model.ToolResult{
		CallID:  callID,
		Name:    ExecuteToolName,
		Success: true,
		Content: map[string]any{"results": outcomes},
	}
}

// parseBatchCalls decodes the "calls" argument. Arguments may arrive as
// structured data or as a JSON string, depending on how the provider
// delivered them; both decode to the same entries.
func parseBatchCalls(args map[string]any) ([]model.ToolCall, error) {
	raw, ok := args["calls"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"calls\" array", ErrInvalidArguments)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	var entries []struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	calls := make([]model.ToolCall, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: calls[%d] has no name", ErrInvalidArguments, i)
		}
		calls = append(calls, model.ToolCall{
			ID:         fmt.Sprintf("batch-%d", i),
			Name:       e.Name,
			Parameters: e.Arguments,
		})
	}
	return calls, nil
}

// normalizeArgs injects session and workspace identity with precedence:
// explicit caller context, then context embedded in the model's
// arguments, then a freshly generated session id.
func (r *Router) normalizeArgs(args map[string]any, execCtx ExecutionContext) map[string]any {
	out := make(map[string]any, len(args)+2)
	for k, v := range args {
		out[k] = v
	}

	switch {
	case execCtx.SessionID != "":
		out[coordinator.ArgSessionID] = execCtx.SessionID
	default:
		if id, ok := out[coordinator.ArgSessionID].(string); !ok || id == "" {
			out[coordinator.ArgSessionID] = uuid.NewString()
		}
	}

	if execCtx.WorkspaceID != "" {
		out[coordinator.ArgWorkspaceID] = execCtx.WorkspaceID
	}

	return out
}

// validateRequired checks the argument bag against the tool's declared
// required parameters. No shape beyond the schema's requirements is
// assumed.
func validateRequired(tool *capability.Tool, args map[string]any) error {
	for _, field := range tool.InputSchema.Required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, field)
		}
	}
	return nil
}

func failure(callID, name string, err error) model.ToolResult {
	if config.Debug {
		config.DebugLog.Printf("[Router] Call %s (%s) failed: %v", callID, name, err)
	}
	return model.ToolResult{
		CallID: callID,
		Name:   name,
		Error:  err.Error(),
	}
}
