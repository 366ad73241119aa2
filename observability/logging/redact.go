package logging

import (
	"log/slog"
	"sort"
	"strings"
)

const RedactedValue = "[REDACTED]"

// credentialTail is how many trailing characters of a credential stay
// visible so operators can tell keys apart.
const credentialTail = 4

// MaskValue hides a non-empty value entirely.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskCredential keeps the last few characters of a credential. Short
// credentials are masked entirely.
func MaskCredential(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 2*credentialTail {
		return MaskValue(value)
	}
	return RedactedValue + value[len(value)-credentialTail:]
}

// MaskHeaders groups exporter headers under "headers" with every value
// masked, keys sorted.
func MaskHeaders(headers map[string]string) slog.Attr {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, slog.String(key, MaskValue(headers[key])))
	}
	return slog.Group("headers", attrs...)
}
