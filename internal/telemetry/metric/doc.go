// Package metric provides Prometheus metrics for Nebula Tower.
//
// The Registry owns every application metric behind small interfaces
// so services stay decoupled from the Prometheus client:
//
//   - prometheus.go: Registry, metric interfaces, /metrics handler
//   - collector.go: store-backed collector (orgs, hosts, invites)
package metric
