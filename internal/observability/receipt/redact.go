package receipt

import (
	"regexp"
	"strings"
)

// sensitiveFlags are flag names whose values should always be redacted.
// Both single-dash and double-dash variants are handled.
var sensitiveFlags = map[string]bool{
	"token":        true,
	"api-token":    true,
	"key":          true,
	"secret":       true,
	"auth":         true,
	"bearer":       true,
	"credential":   true,
	"credentials":  true,
	"access-token": true,
}

// tokenRegex matches Cloudflare API token shapes: 40 characters of
// base64url alphabet.
var tokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{40}$`)

// longSecretRegex matches long alphanumeric strings that look like secrets.
var longSecretRegex = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{32,}$`)

const redactedValue = "[REDACTED]"

// RedactArgs sanitizes CLI arguments by redacting sensitive values.
// Returns the redacted args and whether any redaction was applied.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}

	redacted := make([]string, len(args))
	wasRedacted := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// --flag=value form
		if eqIdx := strings.Index(arg, "="); eqIdx > 0 {
			flag := flagName(arg[:eqIdx])
			value := arg[eqIdx+1:]

			if sensitiveFlags[flag] || looksSecret(value) {
				redacted[i] = arg[:eqIdx+1] + redactedValue
				wasRedacted = true
				continue
			}
			redacted[i] = arg
			continue
		}

		// --flag value form
		if strings.HasPrefix(arg, "-") {
			if sensitiveFlags[flagName(arg)] && i+1 < len(args) {
				redacted[i] = arg
				i++
				redacted[i] = redactedValue
				wasRedacted = true
				continue
			}
		}

		if looksSecret(arg) {
			redacted[i] = redactedValue
			wasRedacted = true
			continue
		}

		redacted[i] = arg
	}

	return redacted, wasRedacted
}

func flagName(s string) string {
	s = strings.TrimPrefix(s, "--")
	s = strings.TrimPrefix(s, "-")
	return strings.ToLower(s)
}

// looksSecret pattern-matches token-shaped values. Conservative: paths and
// URLs never match.
func looksSecret(value string) bool {
	if strings.Contains(value, "/") || strings.Contains(value, ".") {
		return false
	}
	if tokenRegex.MatchString(value) {
		return true
	}
	return len(value) >= 32 && longSecretRegex.MatchString(value)
}
