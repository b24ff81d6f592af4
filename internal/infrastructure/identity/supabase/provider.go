// Package supabase adapts a Supabase Auth (GoTrue) project to the identity
// provider port. User-facing calls use the anon key; app metadata, where roles
// live, is written only through the admin API with the service-role key.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// Config points the adapter at a Supabase project.
type Config struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	Timeout        time.Duration
}

// Provider implements ports.IdentityProvider against GoTrue's REST API.
type Provider struct {
	api *client
	now func() time.Time
	log zerolog.Logger
}

// New validates cfg and returns a Provider.
func New(cfg Config, log zerolog.Logger) (*Provider, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("%w: supabase url %q", domain.ErrConfiguration, cfg.URL)
	}
	if cfg.AnonKey == "" || cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("%w: supabase anon and service-role keys are required", domain.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Provider{
		api: &client{
			baseURL:    base,
			anonKey:    cfg.AnonKey,
			serviceKey: cfg.ServiceRoleKey,
			http:       &http.Client{Timeout: timeout},
		},
		now: time.Now,
		log: log,
	}, nil
}

func (p *Provider) GetSession(ctx context.Context) (*ports.ProviderSession, error) {
	creds, ok := ports.CredentialsFrom(ctx)
	if !ok {
		return nil, domain.ErrNoSession
	}

	var u gotrueUser
	err := p.api.do(ctx, request{method: http.MethodGet, path: "/user", bearer: creds.AccessToken}, &u)
	if err != nil {
		if s := statusOf(err); s == http.StatusUnauthorized || s == http.StatusForbidden {
			return nil, domain.ErrNoSession
		}
		return nil, err
	}

	return &ports.ProviderSession{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    accessTokenExpiry(creds.AccessToken),
		User:         toProviderUser(&u),
	}, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*ports.ProviderSession, error) {
	var s gotrueSession
	err := p.api.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &s)
	if err != nil {
		if s := statusOf(err); s == http.StatusBadRequest || s == http.StatusUnauthorized {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	return p.toSession(&s)
}

func (p *Provider) SignInWithOTP(ctx context.Context, email string, opts ports.OTPOptions) error {
	q := url.Values{}
	if opts.RedirectTo != "" {
		q.Set("redirect_to", opts.RedirectTo)
	}
	return p.api.do(ctx, request{
		method: http.MethodPost,
		path:   "/otp",
		query:  q,
		body: map[string]any{
			"email":       email,
			"create_user": opts.CreateUser,
		},
	}, nil)
}

// VerifyOTP exchanges the token_hash from a magic link. Identities created by
// the link get their pending flag written to app metadata here, since GoTrue
// only lets clients seed user metadata.
func (p *Provider) VerifyOTP(ctx context.Context, token string) (*ports.ProviderSession, error) {
	var s gotrueSession
	err := p.api.do(ctx, request{
		method: http.MethodPost,
		path:   "/verify",
		body:   map[string]string{"type": "magiclink", "token_hash": token},
	}, &s)
	if err != nil {
		if st := statusOf(err); st >= http.StatusBadRequest && st < http.StatusInternalServerError {
			return nil, domain.ErrInvalidOTP
		}
		return nil, err
	}

	if s.User != nil && !hasRoleState(s.User.AppMetadata) {
		u, err := p.adminUpdate(ctx, s.User.ID, ports.MetadataPatch{domain.MetadataRoleSelectionPending: true})
		if err != nil {
			return nil, err
		}
		s.User = u
	}
	return p.toSession(&s)
}

func (p *Provider) SignUp(ctx context.Context, email, password string, metadata ports.MetadataPatch) (*ports.ProviderUser, error) {
	var raw struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	err := p.api.do(ctx, request{
		method: http.MethodPost,
		path:   "/signup",
		body:   map[string]string{"email": email, "password": password},
	}, &raw)
	if err != nil {
		if statusOf(err) == http.StatusUnprocessableEntity && strings.Contains(codeOf(err), "already") {
			return nil, domain.ErrUserExists
		}
		if statusOf(err) == http.StatusUnprocessableEntity || statusOf(err) == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
		}
		return nil, err
	}

	// Autoconfirm projects answer with a session, others with the bare user.
	u := raw.User
	if u == nil {
		u = &raw.gotrueUser
	}
	if u.ID == "" {
		return nil, fmt.Errorf("gotrue: signup returned no user")
	}

	if len(metadata) > 0 {
		if u, err = p.adminUpdate(ctx, u.ID, metadata); err != nil {
			return nil, err
		}
	}
	pu := toProviderUser(u)
	return &pu, nil
}

// UpdateUser writes app metadata through the admin API. GoTrue has no
// conditional update, so unlessSet is checked against the user record just
// read from /user; two writes racing inside that window can both land.
func (p *Provider) UpdateUser(ctx context.Context, patch ports.MetadataPatch, unlessSet string) (*ports.ProviderUser, error) {
	s, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if _, set := s.User.AppMetadata[unlessSet]; unlessSet != "" && set {
		return nil, domain.ErrMetadataConflict
	}
	u, err := p.adminUpdate(ctx, s.User.ID, patch)
	if err != nil {
		return nil, err
	}
	pu := toProviderUser(u)
	return &pu, nil
}

func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*ports.ProviderSession, error) {
	var s gotrueSession
	err := p.api.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &s)
	if err != nil {
		if st := statusOf(err); st == http.StatusBadRequest || st == http.StatusUnauthorized {
			return nil, domain.ErrNoSession
		}
		return nil, err
	}
	return p.toSession(&s)
}

// SignOut revokes the GoTrue session. GoTrue logs out by access token, so a
// request whose access token is missing or rejected trades its refresh token
// for a fresh one first.
func (p *Provider) SignOut(ctx context.Context) error {
	creds, ok := ports.PresentedCredentials(ctx)
	if !ok {
		return nil
	}
	if creds.AccessToken != "" {
		err := p.logout(ctx, creds.AccessToken)
		if !errors.Is(err, domain.ErrNoSession) {
			return err
		}
		if creds.RefreshToken == "" {
			return nil
		}
	}

	s, err := p.RefreshSession(ctx, creds.RefreshToken)
	if errors.Is(err, domain.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.logout(ctx, s.AccessToken); !errors.Is(err, domain.ErrNoSession) {
		return err
	}
	return nil
}

func (p *Provider) logout(ctx context.Context, accessToken string) error {
	err := p.api.do(ctx, request{method: http.MethodPost, path: "/logout", bearer: accessToken}, nil)
	if st := statusOf(err); st == http.StatusUnauthorized || st == http.StatusNotFound {
		return domain.ErrNoSession
	}
	return err
}

// adminUpdate merges patch into app_metadata. GoTrue drops keys set to null.
func (p *Provider) adminUpdate(ctx context.Context, id string, patch ports.MetadataPatch) (*gotrueUser, error) {
	var u gotrueUser
	err := p.api.do(ctx, request{
		method: http.MethodPut,
		path:   "/admin/users/" + url.PathEscape(id),
		body:   map[string]any{"app_metadata": map[string]any(patch)},
		admin:  true,
	}, &u)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p *Provider) toSession(s *gotrueSession) (*ports.ProviderSession, error) {
	if s.AccessToken == "" || s.User == nil {
		return nil, errors.New("gotrue: response carried no session")
	}
	exp := time.Unix(s.ExpiresAt, 0).UTC()
	if s.ExpiresAt == 0 {
		exp = p.now().UTC().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &ports.ProviderSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    exp,
		User:         toProviderUser(s.User),
	}, nil
}

// accessTokenExpiry reads exp from a GoTrue access token. GoTrue has just
// accepted the token, so its signature is not checked again here. Tokens
// without a readable exp yield the zero time.
func accessTokenExpiry(raw string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.UTC()
}

func hasRoleState(md map[string]any) bool {
	for _, k := range []string{domain.MetadataRole, domain.MetadataRoleSelectionPending, domain.MetadataRoleSelectedAt} {
		if _, ok := md[k]; ok {
			return true
		}
	}
	return false
}

func toProviderUser(u *gotrueUser) ports.ProviderUser {
	return ports.ProviderUser{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		AppMetadata:      u.AppMetadata,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
