// Package main provides the entry point for tower-cli.
//
// The CLI tool provides command-line access to a tower-server for:
//
//   - Certificate authority lifecycle (create, info, rotate)
//   - Organization management (create, list, delete)
//   - Host management (create, list, renew, delete, download)
//   - Invite administration (generate, list, revoke)
//   - Self-enrollment with an invite code
//
// Usage:
//
//	tower-cli [command] [flags]
//	tower-cli org list --output json
//	tower-cli enroll ntiv_... --name laptop
package main
