// Package mesh renders overlay mesh configuration for enrolled hosts
// and packages it into downloadable bundles.
//
// A bundle is a zip archive holding everything a host needs to join
// the mesh: the rendered config.yaml, the host certificate and key,
// and the root CA certificate. The config points every host at the
// lighthouse and restricts inbound traffic to the host's own
// organization group.
package mesh
