package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealthHandler_Healthz(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"database": &mockHealthChecker{err: errors.New("down")},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if response := decodeHealth(t, rec); response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
}

func TestHealthHandler_Readyz_AllHealthy(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"database": &mockHealthChecker{},
		"redis":    &mockHealthChecker{},
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	response := decodeHealth(t, rec)
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
	if response.Checks["database"] != "ok" || response.Checks["redis"] != "ok" {
		t.Errorf("unexpected checks: %v", response.Checks)
	}
}

func TestHealthHandler_Readyz_DatabaseUnhealthy(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"database": &mockHealthChecker{err: errors.New("connection refused")},
		"redis":    &mockHealthChecker{},
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	response := decodeHealth(t, rec)
	if response.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %s", response.Status)
	}
	if response.Checks["database"] != "error: connection refused" {
		t.Errorf("unexpected database check: %s", response.Checks["database"])
	}
}

func TestHealthHandler_Readyz_UnconfiguredDependency(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"database": &mockHealthChecker{},
		"redis":    nil,
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if response := decodeHealth(t, rec); response.Checks["redis"] != "not configured" {
		t.Errorf("expected redis 'not configured', got %s", response.Checks["redis"])
	}
}
