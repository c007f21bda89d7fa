package retry

import (
	"encoding/json"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var secretKeyFragments = []string{
	"api_key",
	"apikey",
	"authorization",
	"token",
	"secret",
	"password",
}

var secretValuePattern = regexp.MustCompile(`(?i)(\bsk-[a-z0-9_\-]{8,}|\bbearer\s+[^\s"]+|\bkey\s+[a-z0-9:_\-]{16,})`)

// Redact renders a JSON payload for logging with secret-looking fields and
// values masked. Non-JSON input is treated as a plain string.
func Redact(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return RedactString(string(payload))
	}
	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return redacted
	}
	return string(out)
}

func RedactString(value string) string {
	return secretValuePattern.ReplaceAllString(value, redacted)
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, item := range typed {
			if isSecretKey(key) {
				typed[key] = redacted
				continue
			}
			typed[key] = redactValue(item)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = redactValue(item)
		}
		return typed
	case string:
		return RedactString(typed)
	default:
		return typed
	}
}

func isSecretKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range secretKeyFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}
