// Package actions runs the behavior pipeline: given a composed State and
// an inbound message it validates candidate behaviors, executes the first
// eligible one, and enforces the anti-loop and anti-duplicate invariants
// regardless of which behavior runs.
package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// Callback emits outbound content on behalf of a behavior, regardless of
// which channel adapter is involved.
type Callback func(ctx context.Context, text string) error

// Behavior is a named, independently validated unit of agent response
// logic.
type Behavior interface {
	Name() string
	Aliases() []string
	Description() string

	// Continuation marks behaviors subject to the consecutive-run limit
	// and the natural-stop rule.
	Continuation() bool

	Eligible(ctx context.Context, msg *store.Memory, st *state.State) (bool, error)
	Run(ctx context.Context, msg *store.Memory, st *state.State, emit Callback) error
}

// Status classifies a pipeline execution outcome.
type Status int

const (
	// StatusSkipped means no behavior was eligible; this is not an error.
	StatusSkipped Status = iota
	// StatusExecuted means a behavior ran its side effects.
	StatusExecuted
	// StatusFailed means the selected behavior's handler failed; the
	// failure was contained at the pipeline boundary.
	StatusFailed
)

// String returns the status name for logging and metrics.
func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusExecuted:
		return "executed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result reports what the pipeline did for one inbound message. Callers
// distinguish expected declines from real faults without unwrapping
// errors.
type Result struct {
	Status Status
	Action string
	Err    error
}

// Registry stores behaviors as an ordered list keyed by name.
type Registry struct {
	mu      sync.RWMutex
	ordered []Behavior
	byName  map[string]Behavior
}

// NewRegistry constructs an empty behavior registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Behavior)}
}

// Register appends a behavior. Registration order is selection order.
func (r *Registry) Register(b Behavior) error {
	if b == nil {
		return fmt.Errorf("behavior is required")
	}
	name := strings.TrimSpace(b.Name())
	if name == "" {
		return fmt.Errorf("behavior name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("behavior %q already registered", name)
	}
	for _, alias := range b.Aliases() {
		if _, exists := r.byName[alias]; exists {
			return fmt.Errorf("behavior alias %q already registered", alias)
		}
	}

	r.ordered = append(r.ordered, b)
	r.byName[name] = b
	for _, alias := range b.Aliases() {
		r.byName[alias] = b
	}
	return nil
}

// Get resolves a behavior by name or alias.
func (r *Registry) Get(name string) (Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byName[strings.TrimSpace(name)]
	return b, ok
}

// Ordered returns behaviors in registration order.
func (r *Registry) Ordered() []Behavior {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Behavior, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// IsContinuation reports whether the named action is continuation-tagged.
func (r *Registry) IsContinuation(name string) bool {
	b, ok := r.Get(name)
	return ok && b.Continuation()
}
