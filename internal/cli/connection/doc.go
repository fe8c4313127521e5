// Package connection provides the HTTP client tower-cli talks to the
// server with: bearer-token authentication, JSON envelope parsing, and
// raw downloads for configuration bundles.
package connection
