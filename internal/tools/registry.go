package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lyra/internal/logging"
)

// Registry holds all available operations and provides lookup functionality.
// Registration happens at startup; Freeze validates the catalog and locks it
// before a workflow run begins.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]*Operation
	frozen bool

	// byCategory provides fast lookup by source category.
	byCategory map[string][]*Operation
}

// NewRegistry creates a new empty operation registry.
func NewRegistry() *Registry {
	return &Registry{
		ops:        make(map[string]*Operation),
		byCategory: make(map[string][]*Operation),
	}
}

// Register adds an operation to the registry.
// Returns an error on duplicate names or after Freeze.
func (r *Registry) Register(op *Operation) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("invalid operation: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, op.Name)
	}
	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, op.Name)
	}

	r.ops[op.Name] = op
	cat := op.Category()
	r.byCategory[cat] = append(r.byCategory[cat], op)

	logging.ToolsDebug("Registered operation: %s (category=%s)", op.Name, cat)
	return nil
}

// MustRegister registers an operation and panics on error.
// Use this for static registration at startup.
func (r *Registry) MustRegister(op *Operation) {
	if err := r.Register(op); err != nil {
		panic(fmt.Sprintf("failed to register operation %s: %v", op.Name, err))
	}
}

// Freeze locks the catalog. Further registration fails fast.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	logging.Tools("Registry frozen with %d operations", len(r.ops))
}

// Resolve returns the operation with the given name.
// Returns ErrOperationNotFound for unknown names; never panics.
func (r *Registry) Resolve(name string) (*Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}
	return op, nil
}

// Has returns true if an operation with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ops[name]
	return ok
}

// List returns descriptors for all operations, ordered by name.
// This is the catalog surfaced to the reasoning capability.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.ops))
	for _, op := range r.ops {
		descs = append(descs, Descriptor{
			Name:        op.Name,
			Description: op.Description,
			Schema:      op.Schema,
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Categories returns the distinct source categories in the catalog, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cats := make([]string, 0, len(r.byCategory))
	for c := range r.byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Count returns the number of registered operations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// Execute resolves and runs an operation by name with the given arguments.
// Returns ErrOperationNotFound if the operation doesn't exist.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	op, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.ExecuteOperation(ctx, op, args)
}

// ExecuteOperation runs a specific operation with the given arguments.
func (r *Registry) ExecuteOperation(ctx context.Context, op *Operation, args map[string]any) (*Result, error) {
	start := time.Now()

	if err := validateArgs(op, args); err != nil {
		return &Result{
			Operation:  op.Name,
			Error:      err,
			DurationMs: time.Since(start).Milliseconds(),
		}, err
	}

	logging.ToolsDebug("Executing operation: %s", op.Name)
	payload, err := op.Invoke(ctx, args)

	duration := time.Since(start)
	logging.ToolsDebug("Operation %s completed in %v (success=%v)", op.Name, duration, err == nil)

	return &Result{
		Operation:  op.Name,
		Payload:    payload,
		Error:      err,
		DurationMs: duration.Milliseconds(),
	}, err
}

// validateArgs checks that all required arguments are present.
func validateArgs(op *Operation, args map[string]any) error {
	for _, required := range op.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}
