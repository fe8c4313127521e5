// Package httpserver provides the HTTP/HTTPS server for Nebula Tower.
//
// This package implements the primary external API using stdlib net/http:
//
//   - CA endpoints: /api/ca, /api/ca/rotate
//   - Organization endpoints: /api/orgs, /api/orgs/{org}
//   - Host endpoints: /api/hosts, /api/orgs/{org}/hosts/{name}, bundle download
//   - Invite endpoints: /api/invites, /api/invites/revoke
//   - Enrollment endpoint: /api/enroll
//   - Health endpoints: /health, /ready, /metrics
//
// Features:
//
//   - Optional TLS
//   - Middleware chain: Recover, RequestID, Metrics, Audit, AdminAuth,
//     per-IP enrollment rate limiting
//   - Graceful shutdown with configurable timeout
//   - Prometheus metrics integration
package httpserver
