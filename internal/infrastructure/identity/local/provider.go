// Package local is an identity provider backed by the service's own stores:
// users in MongoDB, revocable sessions and one-time login tokens in Redis,
// and HS256 access/refresh tokens.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// OTPTokenParam is the query parameter magic links carry their token in.
const OTPTokenParam = "token"

const minPasswordLength = 8

// Config holds the secrets and lifetimes of issued credentials.
type Config struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	OTPSecret     []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	OTPTTL        time.Duration
}

func (c *Config) setDefaults() {
	if c.Issuer == "" {
		c.Issuer = "portal-auth"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.OTPTTL <= 0 {
		c.OTPTTL = 15 * time.Minute
	}
}

// Provider implements ports.IdentityProvider.
type Provider struct {
	users    ports.UserRepository
	sessions ports.SessionStore
	otps     ports.OTPStore
	mailer   ports.Mailer
	cfg      Config
	refresh  singleflight.Group
	now      func() time.Time
	log      zerolog.Logger

	// dummyHash keeps sign-in timing uniform for unknown emails.
	dummyHash []byte
}

// New returns a Provider. All three secrets are required.
func New(users ports.UserRepository, sessions ports.SessionStore, otps ports.OTPStore, mailer ports.Mailer, cfg Config, log zerolog.Logger) (*Provider, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 || len(cfg.OTPSecret) == 0 {
		return nil, fmt.Errorf("%w: local identity provider needs access, refresh and otp secrets", domain.ErrConfiguration)
	}
	cfg.setDefaults()

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	return &Provider{
		users:     users,
		sessions:  sessions,
		otps:      otps,
		mailer:    mailer,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
		dummyHash: dummy,
	}, nil
}

func (p *Provider) GetSession(ctx context.Context) (*ports.ProviderSession, error) {
	creds, ok := ports.CredentialsFrom(ctx)
	if !ok {
		return nil, domain.ErrNoSession
	}

	claims, err := p.parse(creds.AccessToken, tokenTypeAccess, p.cfg.AccessSecret, false)
	if err != nil {
		return nil, domain.ErrNoSession
	}

	user, err := p.liveUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	return &ports.ProviderSession{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    claims.ExpiresAt.Time,
		User:         toProviderUser(user),
	}, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*ports.ProviderSession, error) {
	user, err := p.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		// Passwordless identity (created by a magic link).
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return p.startSession(ctx, user)
}

// SignInWithOTP mails a magic link. Unknown emails are silently ignored unless
// opts.CreateUser is set, so the endpoint cannot be used to probe accounts.
func (p *Provider) SignInWithOTP(ctx context.Context, email string, opts ports.OTPOptions) error {
	_, err := p.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound) && !opts.CreateUser:
		p.log.Debug().Str("email", email).Msg("magic link requested for unknown email")
		return nil
	case errors.Is(err, domain.ErrUserNotFound):
		if _, err := p.users.Create(ctx, &ports.StoredUser{Email: email, AppMetadata: map[string]any(opts.Metadata)}); err != nil && !errors.Is(err, domain.ErrUserExists) {
			return err
		}
	case err != nil:
		return err
	}

	token, err := newOTP()
	if err != nil {
		return err
	}
	if err := p.otps.Save(ctx, p.otpDigest(token), email, p.cfg.OTPTTL); err != nil {
		return err
	}

	link, err := magicLink(opts.RedirectTo, token)
	if err != nil {
		return err
	}
	return p.mailer.SendMagicLink(ctx, email, link)
}

func (p *Provider) VerifyOTP(ctx context.Context, token string) (*ports.ProviderSession, error) {
	email, found, err := p.otps.Consume(ctx, p.otpDigest(token))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrInvalidOTP
	}

	user, err := p.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidOTP
	}
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		if err := p.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, err
		}
		user.EmailVerified = true
	}

	return p.startSession(ctx, user)
}

func (p *Provider) SignUp(ctx context.Context, email, password string, metadata ports.MetadataPatch) (*ports.ProviderUser, error) {
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidCredentials, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	user, err := p.users.Create(ctx, &ports.StoredUser{
		Email:        email,
		PasswordHash: string(hash),
		AppMetadata:  map[string]any(metadata),
	})
	if err != nil {
		return nil, err
	}
	pu := toProviderUser(user)
	return &pu, nil
}

// UpdateUser merges patch into the current identity's app metadata. Only the
// server calls this; there is no client path to metadata.
func (p *Provider) UpdateUser(ctx context.Context, patch ports.MetadataPatch, unlessSet string) (*ports.ProviderUser, error) {
	session, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	user, err := p.users.UpdateMetadata(ctx, session.User.ID, patch, unlessSet)
	if err != nil {
		return nil, err
	}
	pu := toProviderUser(user)
	return &pu, nil
}

// RefreshSession rotates the session behind refreshToken. Concurrent refreshes
// presenting the same token share one rotation and receive the same pair.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*ports.ProviderSession, error) {
	v, err, _ := p.refresh.Do(refreshToken, func() (any, error) {
		claims, err := p.parse(refreshToken, tokenTypeRefresh, p.cfg.RefreshSecret, false)
		if err != nil {
			return nil, domain.ErrNoSession
		}
		user, err := p.liveUser(ctx, claims)
		if err != nil {
			return nil, err
		}
		if err := p.sessions.Delete(ctx, claims.SessionID); err != nil {
			return nil, err
		}
		return p.startSession(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ports.ProviderSession), nil
}

// SignOut revokes the session the request's tokens belong to, even if they
// have expired. Once the access cookie is gone the browser still presents the
// refresh token, which names the same session.
func (p *Provider) SignOut(ctx context.Context) error {
	creds, ok := ports.PresentedCredentials(ctx)
	if !ok {
		return nil
	}
	claims, err := p.parse(creds.AccessToken, tokenTypeAccess, p.cfg.AccessSecret, true)
	if err != nil {
		claims, err = p.parse(creds.RefreshToken, tokenTypeRefresh, p.cfg.RefreshSecret, true)
	}
	if err != nil {
		p.log.Debug().Err(err).Msg("sign out without a recognisable session token")
		return nil
	}
	return p.sessions.Delete(ctx, claims.SessionID)
}

func (p *Provider) startSession(ctx context.Context, user *ports.StoredUser) (*ports.ProviderSession, error) {
	sid := uuid.NewString()
	if err := p.sessions.Create(ctx, sid, user.ID, p.cfg.RefreshTTL); err != nil {
		return nil, err
	}
	pair, err := p.issue(user.ID, sid)
	if err != nil {
		return nil, err
	}
	return &ports.ProviderSession{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		ExpiresAt:    pair.ExpiresAt,
		User:         toProviderUser(user),
	}, nil
}

// liveUser checks the session record behind claims and loads its owner.
func (p *Provider) liveUser(ctx context.Context, claims *sessionClaims) (*ports.StoredUser, error) {
	owner, found, err := p.sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !found || owner != claims.Subject {
		return nil, domain.ErrNoSession
	}
	user, err := p.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrNoSession
	}
	return user, err
}

func magicLink(redirectTo, token string) (string, error) {
	if strings.TrimSpace(redirectTo) == "" {
		return "", fmt.Errorf("%w: magic link redirect is empty", domain.ErrConfiguration)
	}
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "", fmt.Errorf("%w: magic link redirect: %v", domain.ErrConfiguration, err)
	}
	q := u.Query()
	q.Set(OTPTokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toProviderUser(u *ports.StoredUser) ports.ProviderUser {
	pu := ports.ProviderUser{
		ID:          u.ID,
		Email:       u.Email,
		AppMetadata: u.AppMetadata,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.EmailVerified {
		confirmed := u.UpdatedAt
		pu.EmailConfirmedAt = &confirmed
	}
	return pu
}
