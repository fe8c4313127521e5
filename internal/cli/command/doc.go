// Package command provides CLI command definitions for tower-cli.
//
// It uses urfave/cli/v2 for command parsing. Commands talk to a running
// tower-server over its HTTP API using the shared connection client, and
// render results through the output package (table, json, yaml).
//
// Command groups:
//
//	ca      - certificate authority lifecycle (info, create, rotate)
//	org     - organization management (create, list, delete)
//	host    - host management (create, list, get, renew, delete, download)
//	invite  - enrollment invite administration (generate, list, revoke)
//	enroll  - redeem an invite code and write the mesh bundle to disk
//	config  - local CLI configuration and server profiles
package command
