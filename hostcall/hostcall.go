// Package hostcall exposes host functions to commands running inside the
// embedded interpreter. Commands reach these through the stderr call
// protocol; see the interp package.
package hostcall

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Func is a host function callable from interpreter commands.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry is a thread-safe name to host function table.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins adds the host functions every session gets.
func RegisterBuiltins(r *Registry) {
	r.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
}
