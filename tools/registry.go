package tools

import (
	"fmt"
	"slices"
)

// Registry is the fixed table of available tools.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	tools []Tool
	byID  map[ID]Tool
}

// NewRegistry creates a registry. Registration order is the order tools are
// resolved and their results merged in.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byID: make(map[ID]Tool, len(tools))}
	for _, t := range tools {
		if _, exists := r.byID[t.ID()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.ID())
		}
		r.byID[t.ID()] = t
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Get returns a tool by id.
func (r *Registry) Get(id ID) (Tool, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// All returns every registered tool in registration order.
func (r *Registry) All() []Tool {
	return slices.Clone(r.tools)
}

// Resolve selects the tools for a chat turn.
//
// An empty request yields exactly the tools enabled by default. Otherwise the
// result is exactly the requested tools, without duplicates and in
// registration order. Any unknown id fails the whole request.
func (r *Registry) Resolve(ids []ID) ([]Tool, error) {
	if len(ids) == 0 {
		var defaults []Tool
		for _, t := range r.tools {
			if t.EnabledByDefault() {
				defaults = append(defaults, t)
			}
		}
		return defaults, nil
	}

	requested := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, id)
		}
		requested[id] = true
	}

	var resolved []Tool
	for _, t := range r.tools {
		if requested[t.ID()] {
			resolved = append(resolved, t)
		}
	}
	return resolved, nil
}
