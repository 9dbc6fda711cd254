package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/core"
)

// WindowReporter is the read-only slice of the rate-limit engine the
// inspection endpoint needs.
type WindowReporter interface {
	Windows(ctx context.Context, key string) ([]core.Window, error)
	ShouldBlock(ctx context.Context, key string) (bool, error)
}

// RateLimitStatusResponse reports the current windows for a key.
type RateLimitStatusResponse struct {
	Key     string        `json:"key"`
	Blocked bool          `json:"blocked"`
	Windows []core.Window `json:"windows"`
}

// RateLimitStatusHandler returns the handler for GET /v1/rate-limit/{key}.
// Looking a key up creates its windows if they do not exist yet, but never
// increments them.
func RateLimitStatusHandler(reporter WindowReporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			RespondError(w, http.StatusBadRequest, "key is required")
			return
		}

		windows, err := reporter.Windows(r.Context(), key)
		if err != nil {
			logger.Error("failed to load rate-limit windows",
				zap.String("key", key),
				zap.Error(err))
			RespondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		blocked, err := reporter.ShouldBlock(r.Context(), key)
		if err != nil {
			logger.Error("failed to evaluate rate-limit state",
				zap.String("key", key),
				zap.Error(err))
			RespondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, RateLimitStatusResponse{
			Key:     key,
			Blocked: blocked,
			Windows: windows,
		})
	}
}
