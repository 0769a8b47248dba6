// Package coordinator wraps a single tool execution with session
// lifecycle: id normalization, workspace context propagation, and
// exactly-once delivery of session instructions back to the model.
//
// Session tracking is best-effort and never load-bearing for the tool's
// own correctness: a store failure or malformed id is logged and the call
// proceeds; it never fails the execution.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llmbridge/capability"
	"llmbridge/config"
	"llmbridge/model"
	"llmbridge/storage"
)

// Argument keys the coordinator injects and reads. Tools that care about
// session identity read these from their argument bag.
const (
	ArgSessionID        = "sessionId"
	ArgWorkspaceID      = "workspaceId"
	ArgWorkspaceContext = "workspaceContext"
)

// Invocation is one resolved tool call ready to execute.
type Invocation struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Coordinator runs invocations against their tools with session
// bookkeeping around them.
type Coordinator struct {
	store storage.SessionStore
}

// New creates a coordinator over a session store.
func New(store storage.SessionStore) *Coordinator {
	return &Coordinator{store: store}
}

// Run executes one invocation: process the session context, execute the
// tool, persist any updated workspace context, and attach the one-time
// session instructions when due. The returned result is always populated;
// tool failures become per-call failure results.
func (c *Coordinator) Run(ctx context.Context, tool *capability.Tool, inv Invocation) model.ToolResult {
	start := time.Now()

	sc, args := c.processSessionContext(inv.Args)

	result := model.ToolResult{
		CallID: inv.CallID,
		Name:   inv.Name,
	}

	content, err := c.execute(ctx, tool, args)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
		result.Content = content
	}

	if sc != nil {
		c.updateSessionContext(sc, content)
		c.addSessionInstructions(&result, sc)
	}

	return result
}

// processSessionContext validates and normalizes the session id carried
// in the argument bag, loads or creates the session record, and binds the
// session's ambient workspace context onto the arguments. On any store
// failure it logs and returns the arguments with the original id: session
// tracking must never fail the call.
func (c *Coordinator) processSessionContext(args map[string]any) (*storage.SessionContext, map[string]any) {
	out := make(map[string]any, len(args)+2)
	for k, v := range args {
		out[k] = v
	}

	rawID, _ := out[ArgSessionID].(string)
	sc, err := c.resolveSession(rawID)
	if err != nil {
		if config.Debug {
			config.DebugLog.Printf("[Coordinator] Session validation failed for %q, proceeding with original id: %v", rawID, err)
		}
		return nil, out
	}

	out[ArgSessionID] = sc.SessionID
	if len(sc.WorkspaceContext) > 0 {
		if _, supplied := out[ArgWorkspaceContext]; !supplied {
			out[ArgWorkspaceContext] = sc.WorkspaceContext
		}
	}
	return sc, out
}

// resolveSession loads the record for an id, creating it on first sight.
// Malformed ids are corrected to a canonical UUID derived
// deterministically from the raw id, so a model that keeps using its own
// id keeps landing on the same session.
func (c *Coordinator) resolveSession(rawID string) (*storage.SessionContext, error) {
	canonical, corrected := CanonicalSessionID(rawID)

	sc, err := c.store.Get(canonical)
	if err == nil {
		return sc, nil
	}
	if !errors.Is(err, storage.ErrSessionNotFound) {
		return nil, err
	}

	sc = &storage.SessionContext{
		SessionID:       canonical,
		IsNewSession:    true,
		IsNonStandardID: corrected,
	}
	if corrected {
		sc.OriginalID = rawID
	}
	if err := c.store.Save(sc); err != nil {
		return nil, fmt.Errorf("failed to create session record: %w", err)
	}
	return sc, nil
}

// execute runs the tool. Panics inside a tool are converted into per-call
// failures; a misbehaving capability must not take down the process.
func (c *Coordinator) execute(ctx context.Context, tool *capability.Tool, args map[string]any) (content any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

// updateSessionContext persists workspace context returned by the tool.
// Tools signal an update by including a workspaceContext map in a map
// result.
func (c *Coordinator) updateSessionContext(sc *storage.SessionContext, content any) {
	resultMap, ok := content.(map[string]any)
	if !ok {
		return
	}
	workspace, ok := resultMap[ArgWorkspaceContext].(map[string]any)
	if !ok {
		return
	}

	if err := c.store.SetWorkspace(sc.SessionID, workspace); err != nil {
		if config.Debug {
			config.DebugLog.Printf("[Coordinator] Failed to persist workspace context for %s: %v", sc.SessionID, err)
		}
		return
	}
	sc.WorkspaceContext = workspace
}

// addSessionInstructions attaches the one-time instruction payload when
// the session is newly created or its id was corrected. The store's
// guarded transition guarantees at most one attachment per session, even
// under repeated calls.
func (c *Coordinator) addSessionInstructions(result *model.ToolResult, sc *storage.SessionContext) {
	if !sc.IsNewSession && !sc.IsNonStandardID {
		return
	}

	first, err := c.store.MarkInstructionsSent(sc.SessionID)
	if err != nil {
		if config.Debug {
			config.DebugLog.Printf("[Coordinator] Failed to mark instructions sent for %s: %v", sc.SessionID, err)
		}
		return
	}
	if !first {
		return
	}

	result.SessionInstructions = sessionInstructions(sc)
}

func sessionInstructions(sc *storage.SessionContext) string {
	if sc.IsNonStandardID {
		return fmt.Sprintf(
			"The session id %q was corrected to %q. Use sessionId %q for all further tool calls in this session.",
			sc.OriginalID, sc.SessionID, sc.SessionID)
	}
	return fmt.Sprintf(
		"A new session was created. Use sessionId %q for all further tool calls in this session.",
		sc.SessionID)
}

// CanonicalSessionID validates a raw session id. Valid UUIDs pass through
// in canonical form. Anything else is corrected to a UUIDv5 derived from
// the raw bytes; corrected is true in that case. An empty id yields a
// fresh random UUID.
func CanonicalSessionID(rawID string) (canonical string, corrected bool) {
	if rawID == "" {
		return uuid.NewString(), false
	}
	if parsed, err := uuid.Parse(rawID); err == nil {
		return parsed.String(), false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(rawID)).String(), true
}
