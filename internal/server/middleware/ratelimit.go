package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/server/handlers"
)

// Limiter is the slice of the rate-limit engine the middleware needs.
type Limiter interface {
	UpdateAndCheck(ctx context.Context, key string, by int) (bool, error)
}

// DenyCounter records rate-limited requests.
type DenyCounter interface {
	RateLimitDenied()
}

// RateLimit gates requests per client IP. The block decision reflects the
// counter state before this request's own increment, so a client is told it
// hit the limit on the request after the one that reached it. Storage errors
// surface as 500s here; the limiter itself never retries.
func RateLimit(limiter Limiter, logger *zap.Logger, denials DenyCounter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			blocked, err := limiter.UpdateAndCheck(r.Context(), key, 1)
			if err != nil {
				logger.Error("rate limit check failed",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				handlers.RespondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if blocked {
				if denials != nil {
					denials.RateLimitDenied()
				}
				logger.Warn("rate limit exceeded",
					zap.String("client_ip", key),
					zap.String("path", r.URL.Path))
				handlers.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
