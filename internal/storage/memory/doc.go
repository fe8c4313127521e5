// Package memory provides in-memory storage for Nebula Tower.
//
// It implements every repository interface the services define, backed by
// concurrent-safe sharded maps. Records are cloned on the way in and out,
// so callers never share mutable state with the store.
//
// The store is the default backend for tests and throwaway deployments;
// durable deployments use the Badger-backed store in the parent package.
package memory
