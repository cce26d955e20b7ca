// Package keys routes key presses to the bindings of the view that is
// currently mounted. A view registers a scope when it appears and closes it
// when it goes away; a closed scope never fires again.
package keys

import (
	"slices"
	"sync"
)

// Key names as reported by Bubble Tea's KeyMsg.String.
const (
	Right  = "right"
	Left   = "left"
	Slash  = "/"
	Escape = "esc"
)

// Handler runs a bound intent.
type Handler func()

// Bindings maps key names to handlers.
type Bindings map[string]Handler

// Registry holds the active scopes in registration order.
type Registry struct {
	mu     sync.Mutex
	seq    uint64
	scopes []*Scope
}

// Scope is one view's set of bindings.
type Scope struct {
	name     string
	id       uint64
	bindings Bindings
	registry *Registry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register activates bindings under name and returns the scope that owns
// them. Later scopes shadow earlier ones for keys both bind.
func (r *Registry) Register(name string, bindings Bindings) *Scope {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	s := &Scope{name: name, id: r.seq, bindings: bindings, registry: r}
	r.scopes = append(r.scopes, s)
	return s
}

// Name returns the scope name.
func (s *Scope) Name() string { return s.name }

// Close deactivates the scope. It is safe to call more than once.
func (s *Scope) Close() {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = slices.DeleteFunc(r.scopes, func(o *Scope) bool { return o.id == s.id })
}

// Active reports whether the scope is still registered.
func (s *Scope) Active() bool {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.scopes, func(o *Scope) bool { return o.id == s.id })
}

// Dispatch runs the handler bound to key in the most recently registered
// active scope that binds it. It reports whether a handler ran.
func (r *Registry) Dispatch(key string) bool {
	r.mu.Lock()
	var h Handler
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if fn, ok := r.scopes[i].bindings[key]; ok && fn != nil {
			h = fn
			break
		}
	}
	r.mu.Unlock()

	if h == nil {
		return false
	}
	h()
	return true
}

// Scopes returns the names of the active scopes, oldest first.
func (r *Registry) Scopes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.scopes))
	for i, s := range r.scopes {
		names[i] = s.name
	}
	return names
}
