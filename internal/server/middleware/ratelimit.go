package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/distributed-ci/dci-server/internal/auth"
)

// RateLimit limits requests per IP address to the specified number per
// minute, using a sliding window.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByAgent limits signed agent requests per client id: a busy
// remoteci is throttled on its own identity rather than its NAT'd address.
// Unsigned requests fall back to the remote IP.
func RateLimitByAgent(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if info := r.Header.Get(auth.ClientInfoHeader); info != "" {
				// The client id is the last segment; a malformed header is
				// rejected later by the guard, keying on the raw value is fine.
				if idx := strings.LastIndex(info, "/"); idx >= 0 && idx < len(info)-1 {
					return info[idx+1:], nil
				}
				return info, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
