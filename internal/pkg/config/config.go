package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Identity provider backends.
const (
	ProviderLocal    = "local"
	ProviderSupabase = "supabase"
)

// Config is the process configuration. Secrets and browser-visible values are
// not here; they are read through envguard.ValidateEnvironment.
type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development" validate:"oneof=development staging production test"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	IdentityProvider string `env:"IDENTITY_PROVIDER, default=local" validate:"oneof=local supabase"`
	// LegacyDefaultRole is assigned to identities that predate role selection.
	// Empty sends them through role selection like new sign-ups.
	LegacyDefaultRole string `env:"LEGACY_DEFAULT_ROLE" validate:"omitempty,oneof=patient doctor company_admin"`

	CookieSecure    bool          `env:"COOKIE_SECURE,    default=true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s" validate:"gt=0"`

	Tokens TokenConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	SMTP   SMTPConfig
}

type TokenConfig struct {
	AccessTTL    time.Duration `env:"ACCESS_TOKEN_TTL,  default=15m"  validate:"gt=0"`
	RefreshTTL   time.Duration `env:"REFRESH_TOKEN_TTL, default=168h" validate:"gtfield=AccessTTL"`
	MagicLinkTTL time.Duration `env:"MAGIC_LINK_TTL,    default=15m"  validate:"gt=0"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=portal_auth"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,     default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM,     default=no-reply@localhost"`
	TLSMode  string `env:"SMTP_TLS_MODE, default=starttls" validate:"oneof=starttls ssl none"`
	Workers  int    `env:"MAIL_WORKERS,  default=4"        validate:"gt=0"`
}

// Enabled reports whether magic links go out over SMTP.
func (s SMTPConfig) Enabled() bool { return s.Host != "" }

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads configuration through src using go-envconfig. In the service src
// is the environment guard, so only server-scope keys can populate it.
func Load(ctx context.Context, src envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: src}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
