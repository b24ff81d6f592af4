package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/metrics"
)

// SessionResolver maps the identity provider's session into domain types.
type SessionResolver struct {
	provider     ports.IdentityProvider
	fallbackRole domain.Role
	now          func() time.Time
	log          zerolog.Logger
}

// ResolverOption customises a SessionResolver.
type ResolverOption func(*SessionResolver)

// WithFallbackRole assigns role to identities that have no recorded role and
// are not explicitly flagged as pending role selection. Accounts created
// before role selection existed rely on this; new sign-ups are always flagged.
func WithFallbackRole(role domain.Role) ResolverOption {
	return func(r *SessionResolver) { r.fallbackRole = role }
}

// NewSessionResolver returns a resolver over provider.
func NewSessionResolver(provider ports.IdentityProvider, log zerolog.Logger, opts ...ResolverOption) *SessionResolver {
	r := &SessionResolver{provider: provider, now: time.Now, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetSession returns the current session, or nil when there is none or its
// access token has expired. Provider failures are logged and reported as
// "no session" without retrying.
func (r *SessionResolver) GetSession(ctx context.Context) *domain.UserSession {
	start := time.Now()
	ps, err := r.provider.GetSession(ctx)
	metrics.SessionLookupDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, domain.ErrNoSession):
		metrics.SessionLookupsTotal.WithLabelValues("absent").Inc()
		return nil
	case err != nil:
		metrics.SessionLookupsTotal.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Msg("identity provider session lookup failed, treating as signed out")
		return nil
	case ps == nil:
		metrics.SessionLookupsTotal.WithLabelValues("absent").Inc()
		return nil
	}

	s := r.toSession(ps)
	if s.Expired(r.now()) {
		metrics.SessionLookupsTotal.WithLabelValues("expired").Inc()
		return nil
	}
	metrics.SessionLookupsTotal.WithLabelValues("found").Inc()
	return s
}

// GetCurrentUser projects GetSession onto its user.
func (r *SessionResolver) GetCurrentUser(ctx context.Context) *domain.User {
	s := r.GetSession(ctx)
	if s == nil {
		return nil
	}
	u := s.User
	return &u
}

// HasRole reports whether a user is signed in with exactly role.
func (r *SessionResolver) HasRole(ctx context.Context, role domain.Role) bool {
	u := r.GetCurrentUser(ctx)
	return u != nil && u.HasRole() && u.Role == role
}

// HasPortalAccess reports whether a signed-in user may enter portal.
func (r *SessionResolver) HasPortalAccess(ctx context.Context, portal domain.Portal) bool {
	u := r.GetCurrentUser(ctx)
	return u != nil && !u.RoleSelectionPending && domain.CanAccessPortal(u.Role, portal)
}

// SignOut invalidates the provider session. A provider refusal is surfaced as
// ErrSignOut rather than swallowed.
func (r *SessionResolver) SignOut(ctx context.Context) (string, error) {
	if err := r.provider.SignOut(ctx); err != nil {
		metrics.SignOutFailuresTotal.Inc()
		r.log.Error().Err(err).Msg("identity provider refused sign out")
		return "", fmt.Errorf("%w: %w", domain.ErrSignOut, err)
	}
	return domain.RouteLanding, nil
}

func (r *SessionResolver) toSession(ps *ports.ProviderSession) *domain.UserSession {
	return &domain.UserSession{
		User:         r.toUser(&ps.User),
		AccessToken:  ps.AccessToken,
		RefreshToken: ps.RefreshToken,
		ExpiresAt:    ps.ExpiresAt,
	}
}

// toUser maps provider metadata into a domain.User. An identity is pending
// role selection until role_selected_at is recorded, when it is flagged
// pending or has no valid role. Once selected it never becomes pending again.
func (r *SessionResolver) toUser(pu *ports.ProviderUser) domain.User {
	u := domain.User{
		ID:            pu.ID,
		Email:         pu.Email,
		EmailVerified: pu.EmailConfirmedAt != nil && !pu.EmailConfirmedAt.IsZero(),
		CreatedAt:     pu.CreatedAt,
		UpdatedAt:     pu.UpdatedAt,
	}

	raw, _ := pu.AppMetadata[domain.MetadataRole].(string)
	if domain.IsValidRole(raw) {
		u.Role = domain.Role(raw)
	} else if raw != "" {
		r.log.Warn().Str("user_id", pu.ID).Str("role", raw).Msg("ignoring unknown role in provider metadata")
	}

	selected := metadataPresent(pu.AppMetadata, domain.MetadataRoleSelectedAt)
	flagged, _ := pu.AppMetadata[domain.MetadataRoleSelectionPending].(bool)

	switch {
	case selected && u.HasRole():
	case flagged || (!selected && !u.HasRole() && r.fallbackRole == domain.RoleUnassigned):
		u.Role = domain.RoleUnassigned
		u.RoleSelectionPending = true
	case !u.HasRole():
		u.Role = r.fallbackRole
		u.RoleSelectionPending = !u.HasRole()
	}
	return u
}

func metadataPresent(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return s != ""
	}
	return true
}
