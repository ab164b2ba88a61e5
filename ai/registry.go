package ai

import (
	"fmt"
	"strings"
	"sync"
)

// Registry resolves provider IDs and model names to chat models.
// The first registered provider is the default.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]AIProvider
	order     []string
}

// NewRegistry creates a registry holding the given providers.
func NewRegistry(providers ...AIProvider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	r := &Registry{providers: make(map[string]AIProvider, len(providers))}
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider. IDs must be unique.
func (r *Registry) Register(p AIProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, ok := r.providers[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, id)
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	return nil
}

// Get returns a provider by ID. An empty ID selects the default provider.
func (r *Registry) Get(id string) (AIProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" && len(r.order) > 0 {
		id = r.order[0]
	}
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, id)
	}
	return p, nil
}

// Default returns the default provider.
func (r *Registry) Default() AIProvider {
	p, _ := r.Get("")
	return p
}

// IDs returns the registered provider IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Resolve returns the provider and chat model for one chat turn.
// An unknown provider wraps core.ErrNotFound; a blank model wraps core.ErrValidation.
func (r *Registry) Resolve(providerID, model string) (AIProvider, ChatModel, error) {
	p, err := r.Get(providerID)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(model) == "" {
		return nil, nil, ErrModelRequired
	}
	chat, err := p.ChatModel(model)
	if err != nil {
		return nil, nil, err
	}
	return p, chat, nil
}

// Close closes every provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, id := range r.order {
		if err := r.providers[id].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
