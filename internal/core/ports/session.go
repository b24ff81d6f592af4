package ports

import (
	"context"

	"github.com/carelink/portal-auth/internal/core/domain"
)

// SessionResolver yields the current identity. Absence of a session is a nil
// result, never an error.
type SessionResolver interface {
	GetSession(ctx context.Context) *domain.UserSession
	GetCurrentUser(ctx context.Context) *domain.User
	HasRole(ctx context.Context, role domain.Role) bool
	HasPortalAccess(ctx context.Context, portal domain.Portal) bool
	// SignOut returns the route to navigate to afterwards.
	SignOut(ctx context.Context) (string, error)
}

// AccessRequirement is what a protected route demands. Zero Portal and Role
// mean "any authenticated user".
type AccessRequirement struct {
	Portal   domain.Portal
	Role     domain.Role
	ReturnTo string
	// AllowPendingRoleSelection lets identities that have not chosen a role
	// through; only the role-selection flow itself sets it.
	AllowPendingRoleSelection bool
}

// AccessGate is consulted by every protected route before rendering.
type AccessGate interface {
	Evaluate(ctx context.Context, req AccessRequirement) (domain.Decision, error)
	PostAuthRedirect(session *domain.UserSession, returnTo string) (string, error)
}

// AuthService drives sign-in, onboarding, and token refresh.
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.UserSession, error)
	SignUp(ctx context.Context, email, password string) (*domain.User, error)
	RequestMagicLink(ctx context.Context, email, returnTo string) error
	CompleteCallback(ctx context.Context, token string) (*domain.UserSession, error)
	SelectRole(ctx context.Context, role domain.Role) (*domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.UserSession, error)
}
