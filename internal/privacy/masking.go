package privacy

import (
	"strings"
)

// MaskIdentity masks a participant identity showing only the last 4
// characters. Phone-shaped identities keep their + prefix.
// Example: "+1234567890" -> "+******7890"
func MaskIdentity(id string) string {
	if id == "" {
		return ""
	}

	if strings.HasPrefix(id, "+") {
		if len(id) <= 5 {
			return "+" + strings.Repeat("*", len(id)-1)
		}
		return "+" + strings.Repeat("*", len(id)-5) + id[len(id)-4:]
	}

	return maskString(id, 4)
}

// MaskChatKey masks a chat key while preserving its structure. Direct
// chat keys keep the pair separator so the shape stays recognizable.
// Example: "alice|bob-restaurant" -> "***ce|************ant"
func MaskChatKey(key string) string {
	if key == "" {
		return ""
	}

	if strings.Contains(key, "|") {
		parts := strings.Split(key, "|")
		masked := make([]string, len(parts))
		for i, p := range parts {
			masked[i] = maskString(p, 2)
		}
		return strings.Join(masked, "|")
	}

	return maskString(key, 4)
}

// MaskTransportID masks a transport-assigned message identifier,
// keeping the last 8 characters for log correlation.
func MaskTransportID(id string) string {
	if id == "" {
		return ""
	}
	return maskString(id, 8)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}
