package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/api/cookie"
	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/secretbox"
)

type stubAuthService struct {
	signInFn     func(ctx context.Context, email, password string) (*domain.UserSession, error)
	signUpFn     func(ctx context.Context, email, password string) (*domain.User, error)
	magicLinkFn  func(ctx context.Context, email, returnTo string) error
	callbackFn   func(ctx context.Context, token string) (*domain.UserSession, error)
	selectRoleFn func(ctx context.Context, role domain.Role) (*domain.User, error)
	refreshFn    func(ctx context.Context, refreshToken string) (*domain.UserSession, error)
}

func (s *stubAuthService) SignInWithPassword(ctx context.Context, email, password string) (*domain.UserSession, error) {
	return s.signInFn(ctx, email, password)
}

func (s *stubAuthService) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	return s.signUpFn(ctx, email, password)
}

func (s *stubAuthService) RequestMagicLink(ctx context.Context, email, returnTo string) error {
	return s.magicLinkFn(ctx, email, returnTo)
}

func (s *stubAuthService) CompleteCallback(ctx context.Context, token string) (*domain.UserSession, error) {
	return s.callbackFn(ctx, token)
}

func (s *stubAuthService) SelectRole(ctx context.Context, role domain.Role) (*domain.User, error) {
	return s.selectRoleFn(ctx, role)
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.UserSession, error) {
	return s.refreshFn(ctx, refreshToken)
}

type stubResolver struct {
	session    *domain.UserSession
	signOutErr error
}

func (r *stubResolver) GetSession(context.Context) *domain.UserSession { return r.session }

func (r *stubResolver) GetCurrentUser(context.Context) *domain.User {
	if r.session == nil {
		return nil
	}
	u := r.session.User
	return &u
}

func (r *stubResolver) HasRole(_ context.Context, role domain.Role) bool {
	return r.session != nil && r.session.User.Role == role
}

func (r *stubResolver) HasPortalAccess(_ context.Context, portal domain.Portal) bool {
	return r.session != nil && domain.CanAccessPortal(r.session.User.Role, portal)
}

func (r *stubResolver) SignOut(context.Context) (string, error) {
	return domain.RouteLanding, r.signOutErr
}

// stubGate redirects to the role's home dashboard unless returnTo is safe.
type stubGate struct {
	decision domain.Decision
	got      ports.AccessRequirement
}

func (g *stubGate) Evaluate(_ context.Context, req ports.AccessRequirement) (domain.Decision, error) {
	g.got = req
	return g.decision, nil
}

func (g *stubGate) PostAuthRedirect(s *domain.UserSession, returnTo string) (string, error) {
	if s.User.RoleSelectionPending {
		return domain.RouteSelectRole, nil
	}
	if safe, ok := domain.SafeReturnTo(returnTo); ok {
		return safe, nil
	}
	return domain.RouteDashboard, nil
}

func testJar(t *testing.T) *cookie.Jar {
	t.Helper()
	box, err := secretbox.New("handler-test-key")
	if err != nil {
		t.Fatalf("secretbox: %v", err)
	}
	return cookie.NewJar(cookie.Config{RefreshTTL: time.Hour}, box)
}

func testSession(role domain.Role, pending bool) *domain.UserSession {
	return &domain.UserSession{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		User: domain.User{
			ID:                   "u1",
			Email:                "u1@example.com",
			Role:                 role,
			RoleSelectionPending: pending,
		},
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}
