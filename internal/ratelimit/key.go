package ratelimit

import "strings"

// KeyForCodeRequest builds the limiter key for one-time code requests to an email.
func KeyForCodeRequest(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return ""
	}
	return "otc:" + normalized
}
