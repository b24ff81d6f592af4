package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stub identity provider
// ---------------------------------------------------------------------------

type stubProvider struct {
	getSessionFn  func(ctx context.Context) (*ports.ProviderSession, error)
	signInFn      func(ctx context.Context, email, password string) (*ports.ProviderSession, error)
	signInOTPFn   func(ctx context.Context, email string, opts ports.OTPOptions) error
	verifyOTPFn   func(ctx context.Context, token string) (*ports.ProviderSession, error)
	signUpFn      func(ctx context.Context, email, password string, md ports.MetadataPatch) (*ports.ProviderUser, error)
	updateUserFn  func(ctx context.Context, patch ports.MetadataPatch, unlessSet string) (*ports.ProviderUser, error)
	refreshFn     func(ctx context.Context, refreshToken string) (*ports.ProviderSession, error)
	signOutFn     func(ctx context.Context) error
	getSessionCnt atomic.Int32
}

func (p *stubProvider) GetSession(ctx context.Context) (*ports.ProviderSession, error) {
	p.getSessionCnt.Add(1)
	if p.getSessionFn == nil {
		return nil, domain.ErrNoSession
	}
	return p.getSessionFn(ctx)
}

func (p *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*ports.ProviderSession, error) {
	return p.signInFn(ctx, email, password)
}

func (p *stubProvider) SignInWithOTP(ctx context.Context, email string, opts ports.OTPOptions) error {
	return p.signInOTPFn(ctx, email, opts)
}

func (p *stubProvider) VerifyOTP(ctx context.Context, token string) (*ports.ProviderSession, error) {
	return p.verifyOTPFn(ctx, token)
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string, md ports.MetadataPatch) (*ports.ProviderUser, error) {
	return p.signUpFn(ctx, email, password, md)
}

func (p *stubProvider) UpdateUser(ctx context.Context, patch ports.MetadataPatch, unlessSet string) (*ports.ProviderUser, error) {
	return p.updateUserFn(ctx, patch, unlessSet)
}

func (p *stubProvider) RefreshSession(ctx context.Context, refreshToken string) (*ports.ProviderSession, error) {
	return p.refreshFn(ctx, refreshToken)
}

func (p *stubProvider) SignOut(ctx context.Context) error {
	if p.signOutFn == nil {
		return nil
	}
	return p.signOutFn(ctx)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func providerSession(id string, md map[string]any) *ports.ProviderSession {
	now := time.Now().UTC()
	return &ports.ProviderSession{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    now.Add(time.Hour),
		User: ports.ProviderUser{
			ID:          id,
			Email:       id + "@example.com",
			AppMetadata: md,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

func selectedRole(role domain.Role) map[string]any {
	return map[string]any{
		domain.MetadataRole:           string(role),
		domain.MetadataRoleSelectedAt: "2026-01-02T03:04:05Z",
	}
}

func sessionWith(ps *ports.ProviderSession) *stubProvider {
	return &stubProvider{
		getSessionFn: func(context.Context) (*ports.ProviderSession, error) { return ps, nil },
	}
}
