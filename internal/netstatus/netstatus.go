// Package netstatus abstracts connectivity detection away from the sync
// engine. The engine consults a Provider instead of listening to any
// runtime-specific environment events.
package netstatus

import "sync"

// Provider reports whether the collector is reachable and notifies
// subscribers on transitions.
type Provider interface {
	// Online reports the current connectivity state.
	Online() bool

	// Subscribe registers a callback invoked on every online/offline
	// transition. The returned cancel function unregisters it.
	Subscribe(fn func(online bool)) (cancel func())
}

// notifier implements subscriber bookkeeping shared by providers.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(online bool)
}

func (n *notifier) subscribe(fn func(online bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(online bool))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify(online bool) {
	n.mu.Lock()
	fns := make([]func(bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

// Static is a Provider whose state is set explicitly. Used in tests and by
// deployments that receive connectivity signals from elsewhere.
type Static struct {
	notifier
	mu     sync.Mutex
	online bool
}

// NewStatic returns a Static provider with the given initial state.
func NewStatic(online bool) *Static {
	return &Static{online: online}
}

// Online reports the current state.
func (s *Static) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set updates the state and notifies subscribers on transitions.
func (s *Static) Set(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	s.mu.Unlock()
	if changed {
		s.notify(online)
	}
}

// Subscribe registers a transition callback.
func (s *Static) Subscribe(fn func(online bool)) func() {
	return s.subscribe(fn)
}
