package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/metrics"
)

// AuthService implements sign-in, sign-up, onboarding, and refresh on top of
// the identity provider.
type AuthService struct {
	provider    ports.IdentityProvider
	resolver    *SessionResolver
	callbackURL string
	now         func() time.Time
	log         zerolog.Logger
}

// NewAuthService wires the service. appURL is the public base URL magic links
// return to (its /auth/callback route).
func NewAuthService(provider ports.IdentityProvider, resolver *SessionResolver, appURL string, log zerolog.Logger) *AuthService {
	return &AuthService{
		provider:    provider,
		resolver:    resolver,
		callbackURL: strings.TrimRight(appURL, "/") + domain.RouteCallback,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*domain.UserSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	ps, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("password", "failure").Inc()
		return nil, err
	}
	metrics.SignInsTotal.WithLabelValues("password", "success").Inc()
	return s.resolver.toSession(ps), nil
}

// SignUp registers an identity. New identities always start pending role
// selection, whatever fallback the resolver is configured with.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	pu, err := s.provider.SignUp(ctx, email, password, pendingMetadata())
	if err != nil {
		return nil, err
	}
	u := s.resolver.toUser(pu)
	return &u, nil
}

// RequestMagicLink sends a one-time login link that lands on /auth/callback,
// carrying returnTo when it is a safe relative path.
func (s *AuthService) RequestMagicLink(ctx context.Context, email, returnTo string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.ErrInvalidCredentials
	}

	redirect := s.callbackURL
	if safe, ok := domain.SafeReturnTo(returnTo); ok {
		q := url.Values{}
		q.Set(domain.ReturnToParam, safe)
		redirect += "?" + q.Encode()
	}

	return s.provider.SignInWithOTP(ctx, email, ports.OTPOptions{
		RedirectTo: redirect,
		CreateUser: true,
		Metadata:   pendingMetadata(),
	})
}

// CompleteCallback exchanges a magic-link token for a session.
func (s *AuthService) CompleteCallback(ctx context.Context, token string) (*domain.UserSession, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrInvalidOTP
	}
	ps, err := s.provider.VerifyOTP(ctx, token)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("magic_link", "failure").Inc()
		return nil, err
	}
	metrics.SignInsTotal.WithLabelValues("magic_link", "success").Inc()
	return s.resolver.toSession(ps), nil
}

// SelectRole records the current identity's role. It succeeds exactly once
// per identity; afterwards ErrRoleAlreadySelected is returned.
func (s *AuthService) SelectRole(ctx context.Context, role domain.Role) (*domain.User, error) {
	if !role.IsSelectable() {
		return nil, domain.ErrRoleNotSelectable
	}

	ps, err := s.provider.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, domain.ErrNoSession
	}

	current := s.resolver.toUser(&ps.User)
	if metadataPresent(ps.User.AppMetadata, domain.MetadataRoleSelectedAt) || !current.RoleSelectionPending {
		return nil, domain.ErrRoleAlreadySelected
	}

	// The selection stamp guards the write itself: of two concurrent
	// selections that both passed the check above, only one lands.
	pu, err := s.provider.UpdateUser(ctx, ports.MetadataPatch{
		domain.MetadataRole:                 string(role),
		domain.MetadataRoleSelectionPending: false,
		domain.MetadataRoleSelectedAt:       s.now().Format(time.RFC3339),
	}, domain.MetadataRoleSelectedAt)
	if errors.Is(err, domain.ErrMetadataConflict) {
		return nil, domain.ErrRoleAlreadySelected
	}
	if err != nil {
		return nil, err
	}

	metrics.RoleSelectionsTotal.WithLabelValues(string(role)).Inc()
	s.log.Info().Str("user_id", pu.ID).Str("role", string(role)).Msg("role selected")

	u := s.resolver.toUser(pu)
	return &u, nil
}

// Refresh trades a refresh token for a new session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.UserSession, error) {
	if refreshToken == "" {
		return nil, domain.ErrNoSession
	}
	ps, err := s.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("refresh", "failure").Inc()
		if !errors.Is(err, domain.ErrNoSession) {
			s.log.Warn().Err(err).Msg("session refresh failed")
		}
		return nil, err
	}
	metrics.SignInsTotal.WithLabelValues("refresh", "success").Inc()
	return s.resolver.toSession(ps), nil
}

func pendingMetadata() ports.MetadataPatch {
	return ports.MetadataPatch{domain.MetadataRoleSelectionPending: true}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
