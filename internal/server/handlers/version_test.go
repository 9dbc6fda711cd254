package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
)

func TestVersionHandler(t *testing.T) {
	SetVersionInfo("1.0.0", "abc1234", "2026-01-02")
	defer SetVersionInfo("dev", "unknown", "unknown")

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()

	VersionHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp VersionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.App.Name != "gatekit" {
		t.Fatalf("expected app name gatekit, got %s", resp.App.Name)
	}
	if resp.App.Version != "1.0.0" {
		t.Fatalf("expected version 1.0.0, got %s", resp.App.Version)
	}
	if resp.App.Commit != "abc1234" {
		t.Fatalf("expected commit abc1234, got %s", resp.App.Commit)
	}
	if resp.App.GoVersion != runtime.Version() {
		t.Fatalf("expected go version %s, got %s", runtime.Version(), resp.App.GoVersion)
	}
	if resp.Runtime.NumCPU < 1 {
		t.Fatalf("expected at least one CPU, got %d", resp.Runtime.NumCPU)
	}
}
