package ports

import (
	"context"
	"time"
)

// StoredUser is a user record owned by the local identity provider.
type StoredUser struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	AppMetadata   map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserRepository persists identities for the local provider.
type UserRepository interface {
	Create(ctx context.Context, user *StoredUser) (*StoredUser, error)
	FindByEmail(ctx context.Context, email string) (*StoredUser, error)
	FindByID(ctx context.Context, id string) (*StoredUser, error)
	// UpdateMetadata merges patch into AppMetadata; nil values unset keys.
	// With a non-empty unlessSet the check and the write are one atomic step:
	// if AppMetadata already holds that key, domain.ErrMetadataConflict.
	UpdateMetadata(ctx context.Context, id string, patch map[string]any, unlessSet string) (*StoredUser, error)
	MarkEmailVerified(ctx context.Context, id string) error
}

// SessionStore tracks live sessions so they can be revoked before their
// tokens expire.
type SessionStore interface {
	Create(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	// Lookup returns the owning user ID; found is false for revoked or expired sessions.
	Lookup(ctx context.Context, sessionID string) (userID string, found bool, err error)
	Delete(ctx context.Context, sessionID string) error
}

// OTPStore holds one-time login tokens, keyed by a digest of the token.
type OTPStore interface {
	Save(ctx context.Context, digest, email string, ttl time.Duration) error
	// Consume returns the email once; found is false for unknown or used tokens.
	Consume(ctx context.Context, digest string) (email string, found bool, err error)
}

// Mailer delivers magic links.
type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string) error
}
