package service

import "sync"

// inflightGuard allows one pending AI call per key. A key is the user's
// session owner joined with the view name.
type inflightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{active: make(map[string]struct{})}
}

// acquire claims key. It returns false when a call for key is already pending.
// Callers that get true must release(key) once the call returns.
func (g *inflightGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = struct{}{}
	return true
}

func (g *inflightGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, key)
}

func (g *inflightGuard) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
