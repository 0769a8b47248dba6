// Package capability holds the lazy agent registry and the tool types it
// realizes.
//
// An Agent is a named group of Tools; a Tool is an opaque callable with a
// declared parameter schema. The Registry owns the set of realized Agent
// instances and creates each one on first use, deduplicating concurrent
// first-use races so that construction side effects happen exactly once.
//
// Tool parameter schemas are mcp.ToolInputSchema values. The converters
// in convert.go translate an aggregated catalog into the tool-declaration
// shape each vendor SDK expects, so a transport layer can advertise the
// same capabilities to any provider family.
package capability

import (
	"context"
	"errors"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

var (
	// ErrAgentNotFound means the agent name is not registered at all.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrToolNotFound means the agent exists but has no tool with the
	// requested slug.
	ErrToolNotFound = errors.New("tool not found")
)

// ToolFunc executes a tool with an argument bag validated against the
// tool's declared schema. The returned value is the tool's result
// payload; errors become per-call failure results, never process-level
// exceptions.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

// Tool is one callable owned by exactly one Agent.
type Tool struct {
	// Slug is unique within the owning agent.
	Slug        string
	Description string

	// InputSchema declares the parameter shape, JSON-Schema style.
	InputSchema mcptypes.ToolInputSchema

	// ResultSchema declares the result shape. Informational; execution
	// results are not validated against it.
	ResultSchema map[string]any

	Execute ToolFunc
}

// Validate reports whether the tool is well-formed enough to register.
func (t *Tool) Validate() error {
	if t.Slug == "" {
		return errors.New("tool has no slug")
	}
	if t.Execute == nil {
		return fmt.Errorf("tool %q has no execute function", t.Slug)
	}
	return nil
}

// Agent is a named group of tools.
type Agent struct {
	name  string
	tools map[string]*Tool
	order []string
}

// NewAgent builds an agent from its tools. Duplicate slugs and invalid
// tools are rejected.
func NewAgent(name string, tools ...*Tool) (*Agent, error) {
	if name == "" {
		return nil, errors.New("agent has no name")
	}

	a := &Agent{
		name:  name,
		tools: make(map[string]*Tool, len(tools)),
	}
	for _, t := range tools {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		if _, exists := a.tools[t.Slug]; exists {
			return nil, fmt.Errorf("agent %q: duplicate tool slug %q", name, t.Slug)
		}
		a.tools[t.Slug] = t
		a.order = append(a.order, t.Slug)
	}
	return a, nil
}

// Name returns the agent's registry name.
func (a *Agent) Name() string { return a.name }

// Tool looks up a tool by slug.
func (a *Agent) Tool(slug string) (*Tool, bool) {
	t, ok := a.tools[slug]
	return t, ok
}

// Tools returns the agent's tools in registration order.
func (a *Agent) Tools() []*Tool {
	out := make([]*Tool, 0, len(a.order))
	for _, slug := range a.order {
		out = append(out, a.tools[slug])
	}
	return out
}
