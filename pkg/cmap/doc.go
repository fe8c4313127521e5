// Package cmap provides a generic sharded concurrent map.
//
// The map spreads keys across shards, each guarded by its own RWMutex,
// which keeps contention low under concurrent access from HTTP handlers
// and background workers. Versioned values additionally get optimistic
// compare-and-swap updates.
//
// Usage:
//
//	m := cmap.New[string, *Host]()
//	m.Set("nths-01abc", host)
//	val, ok := m.Get("nths-01abc")
//
// All operations are safe for concurrent use. Iteration acquires shard
// locks one at a time, so it observes a per-shard consistent view rather
// than a global snapshot.
package cmap
