package resilience

import "sync"

// Group lazily creates one breaker per key, sharing the same settings.
// Upstream hosts are the usual key.
type Group struct {
	settings Settings

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewGroup creates an empty breaker group
func NewGroup(settings Settings) *Group {
	return &Group{
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use
func (g *Group) Get(key string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[key]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok = g.breakers[key]; ok {
		return b
	}
	b = New(key, g.settings)
	g.breakers[key] = b
	return b
}

// Execute runs fn through the breaker for key
func (g *Group) Execute(key string, fn func() error) error {
	return g.Get(key).Execute(fn)
}

// States reports the state of every known breaker
func (g *Group) States() map[string]State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]State, len(g.breakers))
	for key, b := range g.breakers {
		out[key] = b.State()
	}
	return out
}

// Reset drops breakers that are currently closed, bounding the map
func (g *Group) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, b := range g.breakers {
		if b.State() == StateClosed {
			delete(g.breakers, key)
		}
	}
}
