// Package dispatch runs the model round-trip: complete, detect tool use,
// execute the named tools, and feed the results back for a follow-up
// completion.
package dispatch

import (
	"context"
	"sort"
	"sync"
)

// Handler executes one named tool against validated inputs.
type Handler interface {
	// Name is the exact tool name the handler answers for.
	Name() string
	// Execute runs the tool. The returned value is serialized into the tool
	// result fed back to the model.
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc struct {
	ToolName string
	Fn       func(ctx context.Context, input map[string]any) (any, error)
}

func (h HandlerFunc) Name() string { return h.ToolName }

func (h HandlerFunc) Execute(ctx context.Context, input map[string]any) (any, error) {
	return h.Fn(ctx, input)
}

// Registry maps tool names to handlers. Populated at startup; lookups at
// dispatch time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs a handler, replacing any previous one of the same name.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

// Get looks up a handler by exact name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
