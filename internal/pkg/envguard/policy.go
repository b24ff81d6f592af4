package envguard

import (
	"fmt"
	"strings"
)

// PublicPrefix namespaces every variable that browser code may see.
const PublicPrefix = "NEXT_PUBLIC_"

// Client-visible variables.
const (
	EnvSupabaseURL     = "NEXT_PUBLIC_SUPABASE_URL"
	EnvSupabaseAnonKey = "NEXT_PUBLIC_SUPABASE_ANON_KEY"
	EnvAppURL          = "NEXT_PUBLIC_APP_URL"
	EnvPatientsURL     = "NEXT_PUBLIC_PATIENTS_URL"
	EnvDoctorsURL      = "NEXT_PUBLIC_DOCTORS_URL"
	EnvCompaniesURL    = "NEXT_PUBLIC_COMPANIES_URL"
	EnvAdminURL        = "NEXT_PUBLIC_ADMIN_URL"
	EnvCookieDomain    = "NEXT_PUBLIC_COOKIE_DOMAIN"
	EnvVideoDomain     = "NEXT_PUBLIC_VIDEO_DOMAIN"
)

// Server-only secrets.
const (
	EnvSupabaseServiceRoleKey = "SUPABASE_SERVICE_ROLE_KEY"
	EnvJWTSecret              = "JWT_SECRET"
	EnvJWTRefreshSecret       = "JWT_REFRESH_SECRET"
	EnvEncryptionKey          = "ENCRYPTION_KEY"
	EnvSessionSecret          = "SESSION_SECRET"
	EnvSMTPPassword           = "SMTP_PASSWORD"
	EnvMongoURI               = "MONGO_URI"
	EnvDailyAPIKey            = "DAILY_API_KEY"
)

// EnvAllowSensitiveClientKeys silences the sensitive-key warning when set to true.
const EnvAllowSensitiveClientKeys = "ALLOW_SENSITIVE_CLIENT_KEYS"

// Policy is the contract between code and deployment configuration. A new
// browser-safe key must be added to ClientAllowList and a new secret to
// ServerDenyList; nothing is allowed by default.
type Policy struct {
	PublicPrefix    string
	ClientAllowList []string
	ServerDenyList  []string
	// SensitiveKeys are not fatal when exposed, but produce a warning unless
	// OverrideFlag is set to true.
	SensitiveKeys []string
	OverrideFlag  string
}

// DefaultPolicy returns the platform's allow-list and deny-list.
func DefaultPolicy() Policy {
	return Policy{
		PublicPrefix: PublicPrefix,
		ClientAllowList: []string{
			EnvSupabaseURL,
			EnvSupabaseAnonKey,
			EnvAppURL,
			EnvPatientsURL,
			EnvDoctorsURL,
			EnvCompaniesURL,
			EnvAdminURL,
			EnvCookieDomain,
			EnvVideoDomain,
		},
		ServerDenyList: []string{
			EnvSupabaseServiceRoleKey,
			EnvJWTSecret,
			EnvJWTRefreshSecret,
			EnvEncryptionKey,
			EnvSessionSecret,
			EnvSMTPPassword,
			EnvMongoURI,
			EnvDailyAPIKey,
		},
		SensitiveKeys: []string{"SENTRY_AUTH_TOKEN", "STRIPE_SECRET_KEY"},
		OverrideFlag:  EnvAllowSensitiveClientKeys,
	}
}

// Validate checks the policy's own invariants: every client key carries the
// public prefix, no deny-listed secret carries it, and no deny-listed secret
// has a client alias on the allow-list.
func (p Policy) Validate() error {
	if p.PublicPrefix == "" {
		return fmt.Errorf("%w: empty public prefix", ErrInvalidPolicy)
	}

	allowed := make(map[string]struct{}, len(p.ClientAllowList))
	for _, k := range p.ClientAllowList {
		if !strings.HasPrefix(k, p.PublicPrefix) {
			return fmt.Errorf("%w: client key %s lacks prefix %s", ErrInvalidPolicy, k, p.PublicPrefix)
		}
		allowed[k] = struct{}{}
	}

	for _, k := range p.ServerDenyList {
		if strings.HasPrefix(k, p.PublicPrefix) {
			return fmt.Errorf("%w: server secret %s carries the public prefix", ErrInvalidPolicy, k)
		}
		if _, clash := allowed[p.PublicPrefix+k]; clash {
			return &VarError{
				Kind:   ErrSecurityViolation,
				Name:   k,
				Detail: "client alias " + p.PublicPrefix + k + " is allow-listed",
			}
		}
	}
	return nil
}
