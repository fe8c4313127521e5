// Package config defines the tower-cli configuration file: default
// server, default output format, and named server profiles with their
// admin tokens. The file lives at ~/.tower/cli.yaml and is written with
// owner-only permissions because profiles carry tokens.
package config
