package handler

import (
	"time"

	"github.com/carelink/portal-auth/internal/core/domain"
)

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ReturnTo string `json:"returnTo"`
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type magicLinkRequest struct {
	Email    string `json:"email" validate:"required,email"`
	ReturnTo string `json:"returnTo"`
}

type selectRoleRequest struct {
	Role string `json:"role" validate:"required,selectable_role"`
}

// authResponse is returned by every endpoint that establishes or changes a
// session. Redirect is where the client should navigate next.
type authResponse struct {
	User      *domain.User `json:"user,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Redirect  string       `json:"redirect,omitempty"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// expiresAt omits an unknown expiry instead of reporting the zero time.
func expiresAt(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type portalResponse struct {
	Portal domain.Portal `json:"portal"`
	User   domain.User   `json:"user"`
}

type statusResponse struct {
	Status string `json:"status"`
}
