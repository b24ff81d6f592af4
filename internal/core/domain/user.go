package domain

import "time"

// Metadata keys the identity provider stores alongside an identity. They live
// in server-controlled (app) metadata so clients cannot grant themselves a role.
const (
	MetadataRole                 = "role"
	MetadataRoleSelectionPending = "role_selection_pending"
	MetadataRoleSelectedAt       = "role_selected_at"
)

// User models an authenticated identity.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Role                 Role      `json:"role,omitempty"`
	RoleSelectionPending bool      `json:"role_selection_pending"`
	EmailVerified        bool      `json:"email_verified"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasRole reports whether the user has completed role selection.
func (u *User) HasRole() bool {
	return u != nil && u.Role != RoleUnassigned
}

// UserSession is the ephemeral proof of authentication for a User.
type UserSession struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token has passed its expiry at now.
func (s *UserSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
