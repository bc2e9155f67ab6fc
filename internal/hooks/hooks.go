// Package hooks provides a named extension point registry: filters transform
// a value, actions react to an event. A Registry is always passed explicitly
// through constructors; there is no package-level instance.
package hooks

import (
	"sort"
	"sync"
)

// FilterFunc transforms a value. Extra args are passed through unmodified.
type FilterFunc func(value any, args ...any) any

// ActionFunc reacts to an event.
type ActionFunc func(args ...any)

type filterEntry struct {
	fn       FilterFunc
	priority int
	seq      int
}

type actionEntry struct {
	fn       ActionFunc
	priority int
	seq      int
}

// Registry maps hook names to ordered lists of callbacks. Callbacks run in
// ascending priority order; equal priorities run in registration order.
type Registry struct {
	mu      sync.Mutex
	filters map[string][]filterEntry
	actions map[string][]actionEntry
	seq     int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		filters: make(map[string][]filterEntry),
		actions: make(map[string][]actionEntry),
	}
}

// AddFilter registers a transform for the named hook.
func (r *Registry) AddFilter(name string, fn FilterFunc, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.filters[name] = append(r.filters[name], filterEntry{fn: fn, priority: priority, seq: r.seq})
}

// Apply runs the named hook's filters over value in order and returns the
// result. An unknown name returns value unchanged.
func (r *Registry) Apply(name string, value any, args ...any) any {
	r.mu.Lock()
	entries := append([]filterEntry{}, r.filters[name]...)
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})

	for _, e := range entries {
		value = e.fn(value, args...)
	}
	return value
}

// AddAction registers a callback for the named event.
func (r *Registry) AddAction(name string, fn ActionFunc, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.actions[name] = append(r.actions[name], actionEntry{fn: fn, priority: priority, seq: r.seq})
}

// Do fires the named event. Unknown names are a no-op.
func (r *Registry) Do(name string, args ...any) {
	r.mu.Lock()
	entries := append([]actionEntry{}, r.actions[name]...)
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})

	for _, e := range entries {
		e.fn(args...)
	}
}
