package api

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phrazzld/dispatchq/internal/task"
)

// Factory builds an executable task body from a raw submission payload.
// Implementations own payload parsing; the scheduler never sees it.
type Factory func(payload json.RawMessage) (task.Func, error)

// Registry maps task type names to factories so HTTP submissions can be
// turned into closures. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given task type. Registering the same
// type twice is an error.
func (r *Registry) Register(taskType string, factory Factory) error {
	if taskType == "" {
		return fmt.Errorf("task type is required")
	}
	if factory == nil {
		return fmt.Errorf("factory for task type %q is required", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[taskType]; exists {
		return fmt.Errorf("task type %q already registered", taskType)
	}
	r.factories[taskType] = factory
	return nil
}

// Resolve builds a task body for the given type and payload.
func (r *Registry) Resolve(taskType string, payload json.RawMessage) (task.Func, error) {
	r.mu.RLock()
	factory, ok := r.factories[taskType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
	return factory(payload)
}
