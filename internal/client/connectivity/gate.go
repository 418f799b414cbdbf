package connectivity

import "sync"

// Gate reports whether the device currently has connectivity and notifies
// subscribers on transitions. The sync engine only ever consumes this
// narrow surface; how connectivity is detected is the platform's business.
type Gate interface {
	// Online reports the current connectivity state.
	Online() bool

	// Subscribe registers a callback invoked on every transition. The
	// returned function removes the subscription.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ManualGate is a Gate driven by explicit SetOnline calls: from platform
// reachability callbacks in the app, or directly in tests.
type ManualGate struct {
	subs   map[int]func(online bool)
	mu     sync.Mutex
	nextID int
	online bool
}

// NewManualGate creates a gate in the given initial state.
func NewManualGate(online bool) *ManualGate {
	return &ManualGate{
		online: online,
		subs:   make(map[int]func(online bool)),
	}
}

// Online reports the current connectivity state.
func (g *ManualGate) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// SetOnline updates the state and notifies subscribers on a transition.
func (g *ManualGate) SetOnline(online bool) {
	g.mu.Lock()
	if g.online == online {
		g.mu.Unlock()
		return
	}
	g.online = online
	subs := make([]func(bool), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may call back into
	// the gate without deadlocking.
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers a transition callback.
func (g *ManualGate) Subscribe(fn func(online bool)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}
