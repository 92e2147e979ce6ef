package middleware

import (
	"net/http"
	"strings"

	"moviehub-backend/pkg/ratelimit"
)

// ClientIdentity derives the rate-limit identity from forwarding headers, in
// priority order X-Forwarded-For (first entry), X-Real-IP, CF-Connecting-IP.
// Later X-Forwarded-For entries are appended by intermediaries and ignored.
func ClientIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if cfIP := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	return ratelimit.UnknownIdentity
}
