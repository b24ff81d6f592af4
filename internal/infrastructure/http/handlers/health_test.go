package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakeCheck struct {
	name string
	err  error
}

func (f fakeCheck) Name() string                   { return f.name }
func (f fakeCheck) Ping(ctx context.Context) error { return f.err }

func serve(t *testing.T, h echo.HandlerFunc) (*httptest.ResponseRecorder, readinessResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var body readinessResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestLiveness(t *testing.T) {
	rec, body := serve(t, NewHealthHandler().Liveness)
	if rec.Code != http.StatusOK || body.Status != "ok" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewReadinessHandler(fakeCheck{name: "mongo"}, fakeCheck{name: "redis"})
	rec, body := serve(t, h.Readiness)

	if rec.Code != http.StatusOK || body.Status != "ok" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if body.Dependencies["mongo"].Status != "ok" || body.Dependencies["redis"].Status != "ok" {
		t.Fatalf("unexpected dependencies %+v", body.Dependencies)
	}
}

func TestReadiness_Degraded(t *testing.T) {
	h := NewReadinessHandler(fakeCheck{name: "mongo"}, fakeCheck{name: "redis", err: errors.New("connection refused")})
	rec, body := serve(t, h.Readiness)

	if rec.Code != http.StatusServiceUnavailable || body.Status != "degraded" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if body.Dependencies["redis"].Error != "connection refused" {
		t.Fatalf("error not reported: %+v", body.Dependencies["redis"])
	}
}

func TestReadiness_NoDependencies(t *testing.T) {
	rec, _ := serve(t, NewReadinessHandler().Readiness)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without dependencies, got %d", rec.Code)
	}
}
