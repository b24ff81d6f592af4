package ports

import (
	"context"
	"time"
)

// ProviderUser is the identity provider's native view of an identity.
// AppMetadata is writable only by the server.
type ProviderUser struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	AppMetadata      map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProviderSession is the identity provider's native session shape.
type ProviderSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         ProviderUser
}

// OTPOptions controls a passwordless sign-in request.
type OTPOptions struct {
	// RedirectTo is where the magic link lands after verification.
	RedirectTo string
	// CreateUser signs up unknown emails instead of failing.
	CreateUser bool
	// Metadata seeds AppMetadata of identities created by this request.
	Metadata MetadataPatch
}

// MetadataPatch is merged into AppMetadata. A nil value removes the key.
type MetadataPatch map[string]any

// IdentityProvider is the external session/identity service. Methods that act
// on "the current session" read its credentials from ctx (see WithCredentials).
type IdentityProvider interface {
	// GetSession returns domain.ErrNoSession when ctx carries no usable session.
	GetSession(ctx context.Context) (*ProviderSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)
	SignInWithOTP(ctx context.Context, email string, opts OTPOptions) error
	// VerifyOTP exchanges a one-time login token for a session.
	VerifyOTP(ctx context.Context, token string) (*ProviderSession, error)
	SignUp(ctx context.Context, email, password string, metadata MetadataPatch) (*ProviderUser, error)
	// UpdateUser merges patch into the current identity's AppMetadata. A
	// non-empty unlessSet makes the write conditional on that key being absent;
	// when it is present nothing is written and domain.ErrMetadataConflict is
	// returned.
	UpdateUser(ctx context.Context, patch MetadataPatch, unlessSet string) (*ProviderUser, error)
	RefreshSession(ctx context.Context, refreshToken string) (*ProviderSession, error)
	SignOut(ctx context.Context) error
}
