package function

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrFunctionExists  = errors.New("function already registered")
	ErrUnknownFunction = errors.New("unknown function")
	errInvalidFunction = errors.New("invalid function")
)

// Registry хранит функции по id для выбора во время диспетчеризации.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewRegistry создает пустой реестр функций.
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]Function)}
}

// Register добавляет функции; id должны быть уникальны.
func (r *Registry) Register(fns ...Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range fns {
		if fn == nil || fn.ID() == "" {
			return fmt.Errorf("function without id: %w", errInvalidFunction)
		}
		if _, exists := r.functions[fn.ID()]; exists {
			return fmt.Errorf("%s: %w", fn.ID(), ErrFunctionExists)
		}
		r.functions[fn.ID()] = fn
	}
	return nil
}

// Lookup возвращает функцию по id.
func (r *Registry) Lookup(id string) (Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownFunction)
	}
	return fn, nil
}

// IDs возвращает отсортированный список id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.functions))
	for id := range r.functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
