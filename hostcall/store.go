package hostcall

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Store holds the host-side settings that commands read and update through
// settings_get / settings_set / settings_delete / settings_all. It replaces
// a config file shared between host and interpreter: the host stays the
// single owner, commands see a consistent view.
type Store struct {
	mu   sync.RWMutex
	data map[string]string

	maxKeySize   int
	maxValueSize int
	maxEntries   int
}

// StoreOption configures Store limits.
type StoreOption func(*Store)

// WithMaxKeySize caps the byte length of setting keys.
func WithMaxKeySize(n int) StoreOption {
	return func(s *Store) { s.maxKeySize = n }
}

// WithMaxValueSize caps the byte length of setting values.
func WithMaxValueSize(n int) StoreOption {
	return func(s *Store) { s.maxValueSize = n }
}

// WithMaxEntries caps the number of settings.
func WithMaxEntries(n int) StoreOption {
	return func(s *Store) { s.maxEntries = n }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		data:         make(map[string]string),
		maxKeySize:   256,
		maxValueSize: 64 * 1024,
		maxEntries:   1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed sets initial values without limit checks. Intended for host-side
// configuration at session start.
func (s *Store) Seed(values map[string]string) {
	s.mu.Lock()
	for k, v := range values {
		s.data[k] = v
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of all settings.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Get is the settings_get host function.
func (s *Store) Get(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errors.New("key required")
	}

	s.mu.RLock()
	val, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	return val, nil
}

// Set is the settings_set host function.
func (s *Store) Set(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errors.New("key required")
	}
	val, ok := args["value"].(string)
	if !ok {
		return nil, errors.New("value required")
	}

	if len(key) > s.maxKeySize {
		return nil, fmt.Errorf("key exceeds %d bytes", s.maxKeySize)
	}
	if len(val) > s.maxValueSize {
		return nil, fmt.Errorf("value exceeds %d bytes", s.maxValueSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && len(s.data) >= s.maxEntries {
		return nil, fmt.Errorf("store full (%d entries)", s.maxEntries)
	}
	s.data[key] = val

	return "ok", nil
}

// Delete is the settings_delete host function.
func (s *Store) Delete(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errors.New("key required")
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return "ok", nil
}

// All is the settings_all host function.
func (s *Store) All(ctx context.Context, args map[string]any) (any, error) {
	return s.Snapshot(), nil
}

// RegisterSettings wires a Store's host functions into a registry.
func RegisterSettings(r *Registry, s *Store) {
	r.Register("settings_get", s.Get)
	r.Register("settings_set", s.Set)
	r.Register("settings_delete", s.Delete)
	r.Register("settings_all", s.All)
}
