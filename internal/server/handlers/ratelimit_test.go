package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/core"
)

type stubReporter struct {
	windows []core.Window
	blocked bool
	err     error
}

func (s stubReporter) Windows(ctx context.Context, key string) ([]core.Window, error) {
	return s.windows, s.err
}

func (s stubReporter) ShouldBlock(ctx context.Context, key string) (bool, error) {
	return s.blocked, s.err
}

func newStatusRouter(reporter WindowReporter) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/rate-limit/{key}", RateLimitStatusHandler(reporter, zap.NewNop()))
	return r
}

func TestRateLimitStatusHandler(t *testing.T) {
	reporter := stubReporter{
		windows: []core.Window{
			{Duration: core.Minute, Limit: 60, Value: 3, Expiry: time.Now().Add(time.Minute)},
		},
		blocked: false,
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/rate-limit/198.51.100.4", nil)
	rec := httptest.NewRecorder()

	newStatusRouter(reporter).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp RateLimitStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Key != "198.51.100.4" {
		t.Fatalf("expected key 198.51.100.4, got %s", resp.Key)
	}
	if resp.Blocked {
		t.Fatal("expected blocked to be false")
	}
	if len(resp.Windows) != 1 || resp.Windows[0].Value != 3 {
		t.Fatalf("unexpected windows: %+v", resp.Windows)
	}
}

func TestRateLimitStatusHandlerReportsBlocked(t *testing.T) {
	reporter := stubReporter{blocked: true}

	req := httptest.NewRequest(http.MethodGet, "/v1/rate-limit/abuser", nil)
	rec := httptest.NewRecorder()

	newStatusRouter(reporter).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp RateLimitStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Blocked {
		t.Fatal("expected blocked to be true")
	}
}

func TestRateLimitStatusHandlerStorageError(t *testing.T) {
	reporter := stubReporter{err: errors.New("database is locked")}

	req := httptest.NewRequest(http.MethodGet, "/v1/rate-limit/foo", nil)
	rec := httptest.NewRecorder()

	newStatusRouter(reporter).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
