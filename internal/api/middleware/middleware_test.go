package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/api/cookie"
	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/secretbox"
)

type stubGate struct {
	decision domain.Decision
	err      error
	got      ports.AccessRequirement
}

func (g *stubGate) Evaluate(_ context.Context, req ports.AccessRequirement) (domain.Decision, error) {
	g.got = req
	return g.decision, g.err
}

func (g *stubGate) PostAuthRedirect(*domain.UserSession, string) (string, error) {
	return "/", nil
}

func newJar(t *testing.T) *cookie.Jar {
	t.Helper()
	box, err := secretbox.New("k")
	if err != nil {
		t.Fatalf("secretbox: %v", err)
	}
	return cookie.NewJar(cookie.Config{RefreshTTL: time.Hour}, box)
}

func TestSession_AttachesCredentials(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	h := Session(newJar(t))(func(c echo.Context) error {
		called = true
		creds, ok := ports.CredentialsFrom(c.Request().Context())
		if !ok || creds.AccessToken != "tok" {
			t.Fatalf("credentials not attached: %+v", creds)
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatal("next not called")
	}
}

func TestSession_AnonymousPassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	h := Session(newJar(t))(func(c echo.Context) error {
		if _, ok := ports.CredentialsFrom(c.Request().Context()); ok {
			t.Fatal("anonymous request must carry no credentials")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestRequirePortal_Allowed(t *testing.T) {
	session := &domain.UserSession{User: domain.User{ID: "d1", Role: domain.RoleDoctor}}
	gate := &stubGate{decision: domain.Decision{Outcome: domain.OutcomeAllowed, Session: session}}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/portals/doctors/me?tab=1", nil), rec)

	h := RequirePortal(gate, domain.PortalDoctors)(func(c echo.Context) error {
		if c.Get(SessionKey) != session {
			t.Fatal("session not stored on context")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gate.got.Portal != domain.PortalDoctors || gate.got.ReturnTo != "/portals/doctors/me?tab=1" {
		t.Fatalf("unexpected requirement %+v", gate.got)
	}
}

func TestRequirePortal_RedirectsOnce(t *testing.T) {
	gate := &stubGate{decision: domain.Decision{
		Outcome:  domain.OutcomeWrongPortal,
		Route:    domain.RouteDashboard,
		Portal:   domain.PortalDoctors,
		Location: "http://localhost:3002/dashboard",
	}}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/portals/companies/me", nil), rec)

	h := RequirePortal(gate, domain.PortalCompanies)(func(echo.Context) error {
		t.Fatal("next must not run")
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "http://localhost:3002/dashboard" {
		t.Fatalf("expected redirect, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestRequireRole_PassesRoleRequirement(t *testing.T) {
	gate := &stubGate{decision: domain.Decision{Outcome: domain.OutcomeUnauthenticated, Location: "/auth/login"}}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())

	_ = RequireRole(gate, domain.RoleCompanyAdmin)(func(echo.Context) error { return nil })(c)
	if gate.got.Role != domain.RoleCompanyAdmin || gate.got.Portal != "" {
		t.Fatalf("unexpected requirement %+v", gate.got)
	}
}

func TestRequirePortal_GateError(t *testing.T) {
	boom := errors.New("no portal registered")
	gate := &stubGate{err: boom}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequirePortal(gate, domain.PortalAdmin)(func(echo.Context) error { return nil })(c)
	if !errors.Is(err, boom) {
		t.Fatalf("expected gate error to propagate, got %v", err)
	}
}

func TestRequireAuth_StatusByOutcome(t *testing.T) {
	cases := []struct {
		outcome domain.Outcome
		want    int
	}{
		{domain.OutcomeUnauthenticated, http.StatusUnauthorized},
		{domain.OutcomePendingRoleSelection, http.StatusForbidden},
		{domain.OutcomeWrongPortal, http.StatusForbidden},
	}
	for _, tc := range cases {
		gate := &stubGate{decision: domain.Decision{Outcome: tc.outcome, Location: "/somewhere"}}
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		if err := RequireAuth(gate, ports.AccessRequirement{})(func(echo.Context) error { return nil })(c); err != nil {
			t.Fatalf("%s: handler error: %v", tc.outcome, err)
		}
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.outcome, tc.want, rec.Code)
		}
	}
}

func TestNoStore(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := NoStore()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Header().Get(echo.HeaderCacheControl) != "no-store" {
		t.Fatalf("missing no-store header")
	}
}

func TestMetrics_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	cause := echo.NewHTTPError(http.StatusTeapot, "brewing")
	err := Metrics()(func(echo.Context) error { return cause })(c)
	if !errors.Is(err, cause) {
		t.Fatalf("expected handler error to be returned, got %v", err)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status not written before recording, got %d", rec.Code)
	}
}

func TestSession_RefreshOnlyCredentials(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	jar := newJar(t)
	rec := httptest.NewRecorder()
	if err := jar.Set(e.NewContext(req, rec), &domain.UserSession{
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("set cookies: %v", err)
	}
	// The access cookie has expired in the browser; only the refresh cookie is sent.
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == cookie.RefreshName {
			req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}
	c := e.NewContext(req, httptest.NewRecorder())

	h := Session(jar)(func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, ok := ports.CredentialsFrom(ctx); ok {
			t.Fatal("refresh-only request must not count as a session")
		}
		creds, ok := ports.PresentedCredentials(ctx)
		if !ok || creds.RefreshToken != "rt" {
			t.Fatalf("refresh token not attached: %+v", creds)
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}
