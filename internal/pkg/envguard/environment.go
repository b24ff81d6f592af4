package envguard

import (
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// DefaultCookieDomain is used when NEXT_PUBLIC_COOKIE_DOMAIN is unset.
const DefaultCookieDomain = "localhost"

// EnvironmentConfig is the validated view over the process environment.
// Client holds values safe for browser code; Server holds secrets.
type EnvironmentConfig struct {
	Client ClientConfig
	Server ServerConfig
}

type ClientConfig struct {
	Supabase     SupabaseClientConfig
	AppURL       string `envkey:"NEXT_PUBLIC_APP_URL" validate:"required,url"`
	Portals      PortalURLs
	CookieDomain string `envkey:"NEXT_PUBLIC_COOKIE_DOMAIN" validate:"required"`
	VideoDomain  string `envkey:"NEXT_PUBLIC_VIDEO_DOMAIN"`
}

type SupabaseClientConfig struct {
	URL     string `envkey:"NEXT_PUBLIC_SUPABASE_URL" validate:"required,url"`
	AnonKey string `envkey:"NEXT_PUBLIC_SUPABASE_ANON_KEY" validate:"required"`
}

// PortalURLs are the base URLs of each portal application.
type PortalURLs struct {
	Patients  string `envkey:"NEXT_PUBLIC_PATIENTS_URL" validate:"required,url"`
	Doctors   string `envkey:"NEXT_PUBLIC_DOCTORS_URL" validate:"required,url"`
	Companies string `envkey:"NEXT_PUBLIC_COMPANIES_URL" validate:"required,url"`
	Admin     string `envkey:"NEXT_PUBLIC_ADMIN_URL" validate:"required,url"`
}

type ServerConfig struct {
	Supabase      SupabaseServerConfig
	JWT           JWTConfig
	EncryptionKey string `envkey:"ENCRYPTION_KEY" validate:"required"`
	SessionSecret string `envkey:"SESSION_SECRET" validate:"required"`
}

type SupabaseServerConfig struct {
	ServiceRoleKey string `envkey:"SUPABASE_SERVICE_ROLE_KEY" validate:"required"`
}

type JWTConfig struct {
	Secret        string `envkey:"JWT_SECRET" validate:"required"`
	RefreshSecret string `envkey:"JWT_REFRESH_SECRET" validate:"required"`
}

type binding struct {
	name string
	dst  *string
}

// ValidateEnvironment assembles the full EnvironmentConfig from individual
// scoped reads. It stops at the first missing or mis-scoped key and never
// returns a partial config.
func (g *Guard) ValidateEnvironment() (*EnvironmentConfig, error) {
	var cfg EnvironmentConfig

	client := []binding{
		{EnvSupabaseURL, &cfg.Client.Supabase.URL},
		{EnvSupabaseAnonKey, &cfg.Client.Supabase.AnonKey},
		{EnvAppURL, &cfg.Client.AppURL},
		{EnvPatientsURL, &cfg.Client.Portals.Patients},
		{EnvDoctorsURL, &cfg.Client.Portals.Doctors},
		{EnvCompaniesURL, &cfg.Client.Portals.Companies},
		{EnvAdminURL, &cfg.Client.Portals.Admin},
	}
	for _, b := range client {
		v, err := g.EnsureClient(b.name)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	server := []binding{
		{EnvSupabaseServiceRoleKey, &cfg.Server.Supabase.ServiceRoleKey},
		{EnvJWTSecret, &cfg.Server.JWT.Secret},
		{EnvJWTRefreshSecret, &cfg.Server.JWT.RefreshSecret},
		{EnvEncryptionKey, &cfg.Server.EncryptionKey},
		{EnvSessionSecret, &cfg.Server.SessionSecret},
	}
	for _, b := range server {
		v, err := g.EnsureServer(b.name)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	domain, ok, err := g.LookupClient(EnvCookieDomain)
	if err != nil {
		return nil, err
	}
	if !ok {
		domain = DefaultCookieDomain
	}
	cfg.Client.CookieDomain = domain

	if cfg.Client.VideoDomain, _, err = g.LookupClient(EnvVideoDomain); err != nil {
		return nil, err
	}

	if err := g.validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return nil, &VarError{Kind: ErrMalformedEnvironment, Name: ve[0].Field(), Detail: "failed " + ve[0].Tag()}
		}
		return nil, err
	}
	return &cfg, nil
}

// newEnvValidator reports field errors by environment variable name.
func newEnvValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("envkey"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}
