package run

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SettingLogPrints is the inheritable per-run key controlling print capture.
const SettingLogPrints = "logging.log_prints"

// inheritableKeys lists the settings resolved via parent walks at run start.
var inheritableKeys = []string{SettingLogPrints}

// Defaults supplies process-wide fallback values for inheritable settings.
type Defaults map[string]bool

// EnterOptions carries explicit per-run overrides for inheritable settings.
// A nil field means "inherit from the nearest ancestor that set it".
type EnterOptions struct {
	LogPrints *bool
}

func (o EnterOptions) explicit() map[string]bool {
	out := make(map[string]bool, 1)
	if o.LogPrints != nil {
		out[SettingLogPrints] = *o.LogPrints
	}
	return out
}

type runState struct {
	identity  Identity
	explicit  map[string]bool
	effective map[string]bool
}

// Registry is the process-wide record of active runs. It owns each Identity
// for the run's lifetime and resolves inheritable settings once at run start.
type Registry struct {
	mu       sync.Mutex
	defaults Defaults
	runs     map[uuid.UUID]*runState
}

// NewRegistry constructs an empty registry with the given setting defaults.
func NewRegistry(defaults Defaults) *Registry {
	if defaults == nil {
		defaults = Defaults{}
	}
	return &Registry{defaults: defaults, runs: make(map[uuid.UUID]*runState)}
}

// Enter records the run as active, pushes it onto the calling path's identity
// chain, and returns the derived context plus a scope that must be released
// (typically with defer) on every exit path.
func (r *Registry) Enter(ctx context.Context, identity Identity, opts EnterOptions) (context.Context, *Scope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	chain, _ := Chain(ctx)
	if identity.ParentID == uuid.Nil && len(chain) > 0 {
		// Nested entry without an explicit parent link adopts the innermost
		// active run so inheritance walks keep working.
		identity.ParentID = chain[len(chain)-1].ID
	}
	if err := identity.validate(); err != nil {
		return ctx, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[identity.ID]; exists {
		return ctx, nil, fmt.Errorf("run %s: already active", identity.ID)
	}

	state := &runState{
		identity:  identity,
		explicit:  opts.explicit(),
		effective: make(map[string]bool, len(inheritableKeys)),
	}
	for _, key := range inheritableKeys {
		state.effective[key] = r.resolveLocked(state, key)
	}
	r.runs[identity.ID] = state

	next := make([]Identity, 0, len(chain)+1)
	next = append(next, chain...)
	next = append(next, identity)

	scope := &Scope{registry: r, runID: identity.ID}
	return withChain(ctx, next), scope, nil
}

// resolveLocked walks parent links until an explicit value is found, falling
// back to the process-wide default. Explicit child values always win.
func (r *Registry) resolveLocked(state *runState, key string) bool {
	for state != nil {
		if value, ok := state.explicit[key]; ok {
			return value
		}
		parent := state.identity.ParentID
		if parent == uuid.Nil {
			break
		}
		state = r.runs[parent]
	}
	return r.defaults[key]
}

// Effective returns the cached effective value of an inheritable setting for
// the given run. Unknown runs resolve to the process-wide default.
func (r *Registry) Effective(runID uuid.UUID, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.runs[runID]; ok {
		if value, ok := state.effective[key]; ok {
			return value
		}
	}
	return r.defaults[key]
}

// Identity returns the registered identity for an active run.
func (r *Registry) Identity(runID uuid.UUID) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.runs[runID]; ok {
		return state.identity, true
	}
	return Identity{}, false
}

// Active reports whether the run is currently registered.
func (r *Registry) Active(runID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runs[runID]
	return ok
}

func (r *Registry) exit(runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Scope releases a run's registry entry. Exit is idempotent so callers can
// defer it and also call it explicitly on early returns.
type Scope struct {
	registry *Registry
	runID    uuid.UUID
	once     sync.Once
}

// RunID identifies the run this scope guards.
func (s *Scope) RunID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.runID
}

// Exit removes the run from the registry. Safe to call more than once.
func (s *Scope) Exit() {
	if s == nil || s.registry == nil {
		return
	}
	s.once.Do(func() {
		s.registry.exit(s.runID)
	})
}
