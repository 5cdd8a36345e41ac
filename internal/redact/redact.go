// Package redact strips secrets and personal data from strings before they
// reach logs: database URLs, bearer tokens, signing secrets, Redis passwords
// and the e-mail addresses of assignees.
package redact

import "regexp"

// Placeholders written in place of redacted text.
const (
	Placeholder           = "[REDACTED]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	TokenPlaceholder      = "[REDACTED_JWT]"
	SecretPlaceholder     = "[REDACTED_SECRET]"
	EmailPlaceholder      = "[REDACTED_EMAIL]"
	SQLPlaceholder        = "[REDACTED_SQL]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules run in order. The URL rule runs before the e-mail rule so that
// "user:pass@host" in a DSN is not mistaken for an address.
var rules = []rule{
	{regexp.MustCompile(`(?i)\b(postgres(?:ql)?|redis|rediss)://[^@\s]+@`), CredentialPlaceholder},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), TokenPlaceholder},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd|jwt_secret|secret)\s*[=:]\s*['"]?[^'"&\s]{3,}`), SecretPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), EmailPlaceholder},
	{regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[^;]*?\b(FROM|INTO|SET)\b[^;]*`), SQLPlaceholder},
}

// String redacts sensitive fragments of input.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.placeholder)
	}
	return input
}

// Error redacts err's message. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
