package service

import "sync"

// lockRegistry hands out one mutex per key. Host address allocation locks
// per organization; invite redemption locks per code. Entries are never
// reaped: the key population (orgs, invites) is small and bounded by
// administrative action.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{
		locks: make(map[string]*sync.Mutex),
	}
}

// get returns the mutex for key, creating it on first use.
func (r *lockRegistry) get(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}
