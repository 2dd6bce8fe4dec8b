package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// Limiter decides whether a caller may make another request
type Limiter interface {
	Allow(ctx context.Context, caller string) (bool, error)
}

// RateLimit rejects callers over their limit with 429. Callers are keyed by
// client IP, so chi's RealIP should run first. Limiter errors are logged and
// the request is let through. onLimited may be nil.
func RateLimit(limiter Limiter, logger *zap.Logger, onLimited func()) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := clientIP(r)

			allowed, err := limiter.Allow(r.Context(), caller)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					zap.String("caller", caller),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if onLimited != nil {
					onLimited()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(models.ErrorResponse{
					Error:   http.StatusText(http.StatusTooManyRequests),
					Message: "rate limit exceeded",
					Code:    http.StatusTooManyRequests,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
