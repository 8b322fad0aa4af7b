package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactPhone keeps a leading '+' with the next two characters and the last
// four, masking the rest: "+919876543210" → "+91******3210". Values of six
// characters or fewer are fully masked.
func RedactPhone(p string) string {
	p = strings.TrimSpace(p)
	if len(p) <= 6 {
		return strings.Repeat("*", len(p))
	}
	head := 0
	if strings.HasPrefix(p, "+") {
		head = 3
	}
	if len(p)-4 <= head {
		head = 0
	}
	return p[:head] + strings.Repeat("*", len(p)-4-head) + p[len(p)-4:]
}
