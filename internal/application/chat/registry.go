package chat

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Registry maps an identity to the live connections it holds. An identity
// is present only while it has at least one connection.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]mapset.Set[string]
}

func NewRegistry() *Registry {
	return &Registry{byIdentity: make(map[string]mapset.Set[string])}
}

func (r *Registry) Attach(identityID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byIdentity[identityID]
	if !ok {
		conns = mapset.NewThreadUnsafeSet[string]()
		r.byIdentity[identityID] = conns
	}
	conns.Add(connID)
}

// Detach removes one connection and reports whether it was the identity's
// last one.
func (r *Registry) Detach(identityID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byIdentity[identityID]
	if !ok || !conns.Contains(connID) {
		return false
	}

	conns.Remove(connID)
	if conns.Cardinality() == 0 {
		delete(r.byIdentity, identityID)
		return true
	}
	return false
}

func (r *Registry) ConnectionsOf(identityID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byIdentity[identityID]
	if !ok {
		return nil
	}
	return conns.ToSlice()
}

func (r *Registry) IsOnline(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byIdentity[identityID]
	return ok
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

func (r *Registry) OnlineIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byIdentity))
	for id := range r.byIdentity {
		ids = append(ids, id)
	}
	return ids
}
