package capability

import (
	"context"
	"sort"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
)

// Catalog realizes every registered agent and returns the aggregated
// tool list under flat agent_slug names. Listing a capability is its
// first use, so this awaits initialization; agents whose initialization
// fails are skipped rather than failing the whole catalog.
func (r *Registry) Catalog(ctx context.Context) ([]mcptypes.Tool, error) {
	var all []mcptypes.Tool
	for _, name := range r.Names() {
		agent, err := r.GetAgentAsync(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		all = append(all, agentCatalog(agent)...)
	}
	return all, nil
}

// ReadyCatalog aggregates tools from already-realized agents only. It
// never triggers initialization; use it where blocking is unacceptable.
func (r *Registry) ReadyCatalog() []mcptypes.Tool {
	var all []mcptypes.Tool
	for _, name := range r.Names() {
		if !r.HasAgent(name) {
			continue
		}
		all = append(all, agentCatalog(r.GetAgent(name))...)
	}
	return all
}

// SearchCatalog filters a catalog by fuzzy-matching the query against
// flat tool names and descriptions, best matches first. An empty query
// returns the catalog unchanged.
func SearchCatalog(catalog []mcptypes.Tool, query string) []mcptypes.Tool {
	if query == "" {
		return catalog
	}

	haystack := make([]string, len(catalog))
	for i, t := range catalog {
		haystack[i] = t.Name + " " + t.Description
	}

	matches := fuzzy.Find(query, haystack)
	sort.Stable(matches)

	out := make([]mcptypes.Tool, 0, len(matches))
	for _, m := range matches {
		out = append(out, catalog[m.Index])
	}
	return out
}

// agentCatalog renders one agent's tools with namespaced flat names.
// The separator matches the legacy flat-name addressing mode, so a name
// read from the catalog can be invoked directly.
func agentCatalog(agent *Agent) []mcptypes.Tool {
	if agent == nil {
		return nil
	}
	tools := agent.Tools()
	out := make([]mcptypes.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, mcptypes.Tool{
			Name:        agent.Name() + "_" + t.Slug,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}
