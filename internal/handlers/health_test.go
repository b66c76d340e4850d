package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubHealth struct {
	err error
}

func (s stubHealth) Health(ctx context.Context) error {
	return s.err
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(stubHealth{}, stubHealth{})
	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" || resp.Postgres != "healthy" || resp.Redis != "healthy" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	handler := NewHealthHandler(stubHealth{}, stubHealth{err: errors.New("down")})
	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" || resp.Redis != "unhealthy" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHealthHandler_ReadyAndLive(t *testing.T) {
	handler := NewHealthHandler(stubHealth{err: errors.New("down")}, stubHealth{})

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from ready, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from live, got %d", rr.Code)
	}
}
