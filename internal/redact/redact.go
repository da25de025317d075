// Package redact scrubs key-shaped secrets from text that is about to be
// logged or returned to a caller.
package redact

import (
	"regexp"
	"strings"
)

// Upstream error bodies can echo the Authorization header back, so every
// externally-sourced message goes through Secrets before it leaves the
// process.
var apiKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9_-]{10,}`)

// Secrets replaces API-key-shaped substrings with a redaction marker.
func Secrets(text string) string {
	return apiKeyPattern.ReplaceAllString(text, "sk-***REDACTED***")
}

// Error is a convenience wrapper for redacting error messages. A nil error
// yields an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}

// LooksLikeAPIKey reports whether value has the shape of a real API key.
// Placeholders such as "<NEW_KEY>" are rejected so misconfigured
// environments fail fast instead of sending garbage upstream.
func LooksLikeAPIKey(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	if strings.ContainsAny(v, "<>") {
		return false
	}
	if strings.HasPrefix(v, "sk-") {
		return len(v) >= 20
	}
	return false
}
