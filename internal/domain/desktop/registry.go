package desktop

import (
	"sync"

	"github.com/lumendesk/backend/internal/shared/geo"
)

// Registry hands out one desktop Manager per user. Desktops are created
// lazily on first access and live for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	bounds   geo.Rect
	icons    []Icon
	desktops map[string]*Manager // Protected by mu
}

// NewRegistry creates a registry producing desktops with the given
// bounds and icon layout.
func NewRegistry(bounds geo.Rect, icons []Icon) *Registry {
	return &Registry{
		bounds:   bounds,
		icons:    icons,
		desktops: make(map[string]*Manager),
	}
}

// Get returns the user's desktop, creating it on first access.
func (r *Registry) Get(username string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.desktops[username]; ok {
		return d
	}
	d := NewManager(r.bounds, r.icons)
	r.desktops[username] = d
	return d
}

// Count returns the number of live desktops.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.desktops)
}

// WindowCount returns the number of open windows across all desktops.
func (r *Registry) WindowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, d := range r.desktops {
		n += len(d.List())
	}
	return n
}
