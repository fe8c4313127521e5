// Package logger provides structured logging for Nebula Tower.
//
// This package wraps log/slog for structured logging:
//
//   - logger.go: Logger interface, slog configuration, dynamic level
//   - context.go: Context-aware logging with request IDs
//   - redact.go: Sensitive data redaction (invite codes, key material)
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering with runtime adjustment
//   - Automatic sensitive data masking
//   - Context propagation for request tracing
package logger
