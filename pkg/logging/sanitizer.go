// Package logging redacts credentials and user data from strings before they
// reach the log pipeline.
package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxQueryLogLength is the maximum length of a SQL statement to log.
	MaxQueryLogLength = 200
	// RedactedText replaces sensitive data.
	RedactedText = "[REDACTED]"
)

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordRedaction = redaction{regexp.MustCompile(`(?i)\b(password|pwd|pass|pgpassword)=[^;&\s]+`), "${1}=" + RedactedText}

	// user:pass@host in postgres:// URLs
	userInfoRedaction = redaction{regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`), "://" + RedactedText + "@"}

	bearerRedaction = redaction{regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]*`), "Bearer " + RedactedText}

	// OpenAI (sk-...) and Anthropic (sk-ant-...) style secret keys
	providerKeyRedaction = redaction{regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`), RedactedText}

	apiKeyRedaction = redaction{regexp.MustCompile(`(?i)\b(api[_-]?key|x-api-key)[=:]\s*[A-Za-z0-9\-_]{16,}`), "${1}=" + RedactedText}

	connectionRedactions = []redaction{passwordRedaction, userInfoRedaction}
	errorRedactions      = []redaction{passwordRedaction, userInfoRedaction, bearerRedaction, providerKeyRedaction, apiKeyRedaction}
	queryRedactions      = []redaction{passwordRedaction, providerKeyRedaction, apiKeyRedaction}
)

func redact(s string, rules []redaction) string {
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// SanitizeConnectionString removes credentials from a database URL or DSN.
func SanitizeConnectionString(connStr string) string {
	return redact(connStr, connectionRedactions)
}

// SanitizeError renders err with credentials, tokens and provider keys removed.
// Use it for every store or provider error that gets logged.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redact(err.Error(), errorRedactions)
}

// SanitizeQuery truncates a SQL statement and removes credential patterns.
// Filter values never appear in statements since they are bound parameters.
func SanitizeQuery(query string) string {
	return redact(TruncateString(query, MaxQueryLogLength), queryRedactions)
}

// TruncateString shortens s to at most maxLen bytes without splitting a
// UTF-8 sequence, adding an ellipsis when anything was cut.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
