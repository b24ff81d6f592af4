package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carelink/portal-auth/internal/core/domain"
)

func TestSessionHandler_Current(t *testing.T) {
	e := newEcho()

	t.Run("anonymous", func(t *testing.T) {
		h := NewSessionHandler(&stubResolver{}, &stubGate{})
		rec := httptest.NewRecorder()
		if err := h.Current(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil), rec)); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp sessionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if rec.Code != http.StatusOK || resp.Authenticated || resp.User != nil {
			t.Fatalf("unexpected anonymous response %d %+v", rec.Code, resp)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		h := NewSessionHandler(&stubResolver{session: testSession(domain.RoleDoctor, false)}, &stubGate{})
		rec := httptest.NewRecorder()
		if err := h.Current(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil), rec)); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		user, _ := resp["user"].(map[string]any)
		if resp["authenticated"] != true || user["role"] != "doctor" {
			t.Fatalf("unexpected response %+v", resp)
		}
		if _, leaked := resp["access_token"]; leaked {
			t.Fatal("tokens must not be serialised")
		}
		if _, ok := resp["expires_at"]; !ok {
			t.Fatal("known expiry must be reported")
		}
	})

	t.Run("unknown expiry omitted", func(t *testing.T) {
		s := testSession(domain.RolePatient, false)
		s.ExpiresAt = time.Time{}
		h := NewSessionHandler(&stubResolver{session: s}, &stubGate{})
		rec := httptest.NewRecorder()
		if err := h.Current(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil), rec)); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if v, ok := resp["expires_at"]; ok {
			t.Fatalf("zero expiry must be omitted, got %v", v)
		}
	})
}

func TestSessionHandler_Evaluate(t *testing.T) {
	e := newEcho()
	gate := &stubGate{decision: domain.Decision{
		Outcome:  domain.OutcomeWrongPortal,
		Portal:   domain.PortalDoctors,
		Route:    domain.RouteDashboard,
		Location: "http://localhost:3002/dashboard",
	}}
	h := NewSessionHandler(&stubResolver{}, gate)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gate?portal=companies&returnTo=%2Fcompanies%2Fstaff", nil)
	if err := h.Evaluate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gate.got.Portal != domain.PortalCompanies || gate.got.ReturnTo != "/companies/staff" {
		t.Fatalf("requirement not parsed: %+v", gate.got)
	}

	var d domain.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if d.Outcome != domain.OutcomeWrongPortal || d.Location != "http://localhost:3002/dashboard" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestSessionHandler_EvaluateRejectsUnknownValues(t *testing.T) {
	e := newEcho()
	h := NewSessionHandler(&stubResolver{}, &stubGate{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gate?portal=billing", nil)
	if err := h.Evaluate(e.NewContext(req, httptest.NewRecorder())); !errors.Is(err, domain.ErrInvalidPortal) {
		t.Fatalf("expected ErrInvalidPortal, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/gate?role=root", nil)
	if err := h.Evaluate(e.NewContext(req, httptest.NewRecorder())); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}
