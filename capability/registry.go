package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"llmbridge/config"
)

// AgentFactory constructs an agent. Factories run at most once per name;
// their side effects (spawning helper processes, opening indexes) are the
// reason initialization is lazy and deduplicated.
type AgentFactory func(ctx context.Context) (*Agent, error)

// RegistrationState is the lifecycle of one per-name registration record.
type RegistrationState string

const (
	StateUnregistered RegistrationState = "unregistered"
	StateInitializing RegistrationState = "initializing"
	StateReady        RegistrationState = "ready"
)

// registration is the per-name record. done is closed exactly once when
// initialization settles; every concurrent caller waits on the same
// channel and observes the same agent/err pair.
type registration struct {
	state RegistrationState
	done  chan struct{}
	agent *Agent
	err   error
}

// Registry holds named agent factories and the agents they realize.
// It is safe for concurrent use; the per-name record map is the only
// mutable shared state in this core.
type Registry struct {
	mu        sync.Mutex
	factories map[string]AgentFactory
	records   map[string]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]AgentFactory),
		records:   make(map[string]*registration),
	}
}

// RegisterFactory declares an agent name without constructing it.
// Returns an error if the name is already taken.
func (r *Registry) RegisterFactory(name string, factory AgentFactory) error {
	if name == "" {
		return fmt.Errorf("agent factory has no name")
	}
	if factory == nil {
		return fmt.Errorf("agent %q: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("agent %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// HasAgent is a best-effort cache check: true only if the agent is
// already realized. It never triggers initialization.
func (r *Registry) HasAgent(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	return ok && rec.state == StateReady && rec.err == nil
}

// Known reports whether the name has a registered factory, realized or
// not.
func (r *Registry) Known(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns all registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAgent returns the cached agent if ready, otherwise nil. When the
// name is known but not yet realized, initialization is scheduled in the
// background (fire-and-forget) so a later call can hit the cache.
// Callers needing a guarantee use GetAgentAsync.
func (r *Registry) GetAgent(name string) *Agent {
	r.mu.Lock()
	rec, started := r.records[name]
	if rec != nil && rec.state == StateReady {
		r.mu.Unlock()
		if rec.err != nil {
			return nil
		}
		return rec.agent
	}
	factory, known := r.factories[name]
	if !known {
		r.mu.Unlock()
		return nil
	}
	if !started {
		r.begin(name, factory)
	}
	r.mu.Unlock()
	return nil
}

// GetAgentAsync returns the agent, awaiting initialization if it is in
// progress or starting it if it never ran. Returns nil with an error only
// when the name is genuinely unknown or its initialization failed.
func (r *Registry) GetAgentAsync(ctx context.Context, name string) (*Agent, error) {
	r.mu.Lock()
	rec, started := r.records[name]
	if !started {
		factory, known := r.factories[name]
		if !known {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, name)
		}
		rec = r.begin(name, factory)
	}
	r.mu.Unlock()

	select {
	case <-rec.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rec.err != nil {
		return nil, fmt.Errorf("agent %q failed to initialize: %w", name, rec.err)
	}
	return rec.agent, nil
}

// Unregister discards the registration record and factory for a name.
// Normal operation never needs this; tests use it to rewind the state
// machine. An in-flight initialization finishes against the discarded
// record and is not observed by later callers.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, name)
	delete(r.factories, name)
}

// begin creates the record and launches the single initialization
// goroutine. Caller must hold r.mu. This is the one mutual-exclusion
// point in the core: racing callers observe one record and therefore one
// factory invocation.
func (r *Registry) begin(name string, factory AgentFactory) *registration {
	rec := &registration{
		state: StateInitializing,
		done:  make(chan struct{}),
	}
	r.records[name] = rec

	go func() {
		agent, err := factory(context.Background())
		if err == nil && agent == nil {
			err = fmt.Errorf("factory for %q returned no agent", name)
		}

		r.mu.Lock()
		rec.agent = agent
		rec.err = err
		rec.state = StateReady
		r.mu.Unlock()
		close(rec.done)

		if config.Debug {
			if err != nil {
				config.DebugLog.Printf("[Registry] Agent %q initialization failed: %v", name, err)
			} else {
				config.DebugLog.Printf("[Registry] Agent %q ready with %d tools", name, len(agent.Tools()))
			}
		}
	}()

	return rec
}

// State reports the registration state for a name, for diagnostics and
// tests.
func (r *Registry) State(name string) RegistrationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[name]; ok {
		return rec.state
	}
	return StateUnregistered
}
