// Package storage provides the Badger-backed persistent store.
//
// BadgerStore persists all tower records (certificate authority,
// organizations, hosts, invites) as JSON values in a Badger v3
// key-value database. Records are namespaced by key prefix and
// updates take the same optimistic version check the in-memory
// store applies, so the two backends are interchangeable behind
// the service repository interfaces.
//
// A background loop runs Badger value-log garbage collection, and
// RegisterMetrics exposes store size and GC figures to Prometheus.
package storage
