package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Public chain data is safe to log verbatim. Every other key passed through
// MaskField is hidden.
var publicKeys = map[string]bool{
	"account":    true,
	"address":    true,
	"contract":   true,
	"method":     true,
	"tx_hash":    true,
	"network":    true,
	"chain_id":   true,
	"key_source": true,
}

// IsPublic reports whether key is logged without masking.
func IsPublic(key string) bool {
	return publicKeys[strings.ToLower(strings.TrimSpace(key))]
}

// MaskField returns an attribute whose value is redacted unless key is
// public. Keystore paths, passphrase variables and raw keys go through here.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPublic(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
