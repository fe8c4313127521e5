// Package logger provides structured logging for Nebula Tower.
package logger

import (
	"log/slog"
	"strings"
)

// Sensitive value prefixes that should be redacted. These follow the
// tower's ID/code format conventions.
var sensitiveValuePrefixes = []string{
	"ntiv_", // Invite code (bearer secret)
}

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
	"invite_code",
}

// pemPrivateKeyMarker flags values carrying PEM private key material.
const pemPrivateKeyMarker = "PRIVATE KEY-----"

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	// A known sensitive value shape takes priority over key-based
	// detection and gets a partial mask.
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, maskValue(strVal, prefix))
			}
		}

		// PEM private keys never appear in logs, in any position.
		if strings.Contains(strVal, pemPrivateKeyMarker) {
			return slog.String(a.Key, redactedValue)
		}

		keyLower := strings.ToLower(a.Key)
		for _, pattern := range sensitiveKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if strVal != "" {
					return slog.String(a.Key, redactedValue)
				}
				break
			}
		}
	}

	// Handle nested groups recursively.
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue partially masks a sensitive value, keeping prefix and hints.
// Format: prefix + first 3 chars + "..." + last 3 chars
func maskValue(value, prefix string) string {
	if len(value) <= len(prefix)+6 {
		return prefix + "***"
	}

	body := value[len(prefix):]
	if len(body) > 6 {
		return prefix + body[:3] + "..." + body[len(body)-3:]
	}
	return prefix + "***"
}

// MaskCode masks an invite code for safe logging.
func MaskCode(code string) string {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(code, prefix) {
			return maskValue(code, prefix)
		}
	}
	// Generic tower-prefixed secret (nt<x>_...).
	if strings.HasPrefix(code, "nt") && strings.Contains(code, "_") {
		idx := strings.Index(code, "_")
		if idx > 0 && idx < 10 {
			return maskValue(code, code[:idx+1])
		}
	}
	return code
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be sensitive.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return strings.Contains(value, pemPrivateKeyMarker)
}
