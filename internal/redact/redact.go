// Package redact scrubs credentials and personal data from strings before
// they are logged. Tokens issued by the identity provider, session secrets,
// database passwords and email addresses must never reach the logs verbatim.
package redact

import (
	"log/slog"
	"regexp"
)

// Placeholders substituted for redacted values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules are applied in order; JWTs go first so the bearer rule only sees
// opaque tokens.
var rules = []rule{
	{
		pattern:     regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`),
		replacement: RedactedJWTPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]{8,}`),
		replacement: "${1} " + RedactedTokenPlaceholder,
	},
	{
		pattern: regexp.MustCompile(
			`(?i)\b(access_token|refresh_token|id_token|client_secret|code_verifier|code)=[^&\s"']+`,
		),
		replacement: "${1}=" + RedactionPlaceholder,
	},
	{
		pattern: regexp.MustCompile(
			`(?i)\b(postgres(?:ql)?|mysql|mongodb(?:\+srv)?)://[^:/@\s]+:[^@\s]+@`,
		),
		replacement: "${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		pattern: regexp.MustCompile(
			`(?i)\b(password|passwd|pwd|secret|api[_-]?key)(\s*[=:]\s*)['"]?[^'"&\s,]+['"]?`,
		),
		replacement: "${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		replacement: RedactedEmailPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// ErrorAttr returns a redacted "error" attribute for structured logging.
func ErrorAttr(err error) slog.Attr {
	return slog.String("error", Error(err))
}
