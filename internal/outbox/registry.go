package outbox

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds one processor per category and runs drains on demand. It is
// the single entry point for both the scheduler and the administrative
// trigger; overlapping drains of the same category are allowed and resolved
// by the store's processed-marking semantics.
type Registry struct {
	mu         sync.RWMutex
	processors map[Category]*Processor
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[Category]*Processor)}
}

// Register adds a processor for its category.
func (registry *Registry) Register(processor *Processor) error {
	if processor == nil {
		return ErrProcessorRequired
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	category := processor.Category()
	if _, exists := registry.processors[category]; exists {
		return fmt.Errorf("processor already registered for category %q", category)
	}

	registry.processors[category] = processor

	return nil
}

// Drain runs one drain for the named category.
func (registry *Registry) Drain(ctx context.Context, category Category) (DrainResult, error) {
	registry.mu.RLock()
	processor, ok := registry.processors[category]
	registry.mu.RUnlock()

	if !ok {
		return DrainResult{}, fmt.Errorf("%w: %q", ErrCategoryUnknown, category)
	}

	return processor.Drain(ctx), nil
}

// DrainAll runs one drain for every registered category and returns the
// per-category results.
func (registry *Registry) DrainAll(ctx context.Context) map[Category]DrainResult {
	registry.mu.RLock()
	processors := make([]*Processor, 0, len(registry.processors))

	for _, processor := range registry.processors {
		processors = append(processors, processor)
	}
	registry.mu.RUnlock()

	results := make(map[Category]DrainResult, len(processors))
	for _, processor := range processors {
		results[processor.Category()] = processor.Drain(ctx)
	}

	return results
}
