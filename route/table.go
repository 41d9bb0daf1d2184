// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package route maps path keys, the first segment of a request URI, to handlers.
package route

import (
	"sort"
	"sync"
)

// Table is a concurrency safe mapping from path key to handler.
// Keys are matched exactly. The zero value is an empty Table ready for use.
type Table[H any] struct {
	mu     sync.RWMutex
	routes map[string]H
}

// NewTable returns an empty Table.
func NewTable[H any]() *Table[H] {
	return &Table[H]{
		routes: make(map[string]H),
	}
}

// Set registers h for key, replacing any handler already registered.
func (t *Table[H]) Set(key string, h H) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.routes == nil {
		t.routes = make(map[string]H)
	}
	t.routes[key] = h
}

// SetIfAbsent registers h for key only if key has no handler yet.
// It reports whether h was registered.
func (t *Table[H]) SetIfAbsent(key string, h H) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.routes == nil {
		t.routes = make(map[string]H)
	}
	if _, exists := t.routes[key]; exists {
		return false
	}
	t.routes[key] = h
	return true
}

// Lookup returns the handler registered for key.
func (t *Table[H]) Lookup(key string) (H, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.routes[key]
	return h, ok
}

// Keys returns a sorted snapshot of the registered keys.
func (t *Table[H]) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.routes))
	for key := range t.routes {
		keys = append(keys, key)
	}
	t.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of registered keys.
func (t *Table[H]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
