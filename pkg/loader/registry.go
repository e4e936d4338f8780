package loader

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one live loader tracked by a Registry.
type Entry struct {
	ID      string
	Source  string
	Started time.Time
	Loader  *Loader
}

// Registry tracks live loader instances under stable session IDs, for the
// status API and the serve command. Loaders are fully independent of each
// other; the registry is bookkeeping only.
//
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Add registers a loader and returns its session ID.
func (r *Registry) Add(l *Loader) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = Entry{ID: id, Source: l.Source(), Started: time.Now(), Loader: l}
	r.mu.Unlock()
	return id
}

// Get returns the entry for a session ID.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove unregisters a loader. It does not close it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// List returns all entries ordered by start time.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// CloseAll closes every registered loader and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]Entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.Loader.Close()
	}
}
