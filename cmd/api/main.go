// @title        Portal Auth API
// @version      1.0
// @description  Role-to-portal authentication and access control for the care portals.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/carelink/portal-auth/internal/api"
	"github.com/carelink/portal-auth/internal/api/cookie"
	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/core/service"
	mongostore "github.com/carelink/portal-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/carelink/portal-auth/internal/infrastructure/db/redis"
	"github.com/carelink/portal-auth/internal/infrastructure/http/handlers"
	"github.com/carelink/portal-auth/internal/infrastructure/identity/local"
	"github.com/carelink/portal-auth/internal/infrastructure/identity/supabase"
	"github.com/carelink/portal-auth/internal/infrastructure/mail"
	"github.com/carelink/portal-auth/internal/infrastructure/queue"
	"github.com/carelink/portal-auth/internal/pkg/config"
	"github.com/carelink/portal-auth/internal/pkg/envguard"
	"github.com/carelink/portal-auth/internal/pkg/secretbox"
	"github.com/carelink/portal-auth/pkg/logger"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "portal-auth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Configuration boundary: any failure here halts startup ---
	boot := zerolog.New(os.Stderr).With().Timestamp().Str("component", "envguard").Logger()
	guard, err := envguard.New(envconfig.OsLookuper(), envguard.WithLogger(boot))
	if err != nil {
		return err
	}
	if _, err := guard.ValidateSecurity(); err != nil {
		return err
	}
	env, err := guard.ValidateEnvironment()
	if err != nil {
		return err
	}
	cfg, err := config.Load(ctx, guard)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "portal-auth",
	})

	// --- Mail ---
	var sender ports.Mailer = mail.NewLogMailer(logger.Component("log_mailer"))
	if cfg.SMTP.Enabled() {
		sender = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			TLSMode:  cfg.SMTP.TLSMode,
		}, log)
	}
	dispatcher := queue.NewDispatcher(cfg.SMTP.Workers, sender, logger.Component("mail_queue"))
	dispatcher.Start(context.Background())

	// --- Identity provider ---
	var (
		provider ports.IdentityProvider
		checks   []handlers.Checker
	)
	switch cfg.IdentityProvider {
	case config.ProviderSupabase:
		provider, err = supabase.New(supabase.Config{
			URL:            env.Client.Supabase.URL,
			AnonKey:        env.Client.Supabase.AnonKey,
			ServiceRoleKey: env.Server.Supabase.ServiceRoleKey,
		}, logger.Component("supabase"))
		if err != nil {
			return err
		}
	default:
		mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()

		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		users := mongostore.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return err
		}

		provider, err = local.New(users, redisstore.NewSessionStore(rdb), redisstore.NewOTPStore(rdb), dispatcher, local.Config{
			AccessSecret:  []byte(env.Server.JWT.Secret),
			RefreshSecret: []byte(env.Server.JWT.RefreshSecret),
			OTPSecret:     []byte(env.Server.SessionSecret),
			AccessTTL:     cfg.Tokens.AccessTTL,
			RefreshTTL:    cfg.Tokens.RefreshTTL,
			OTPTTL:        cfg.Tokens.MagicLinkTTL,
		}, logger.Component("local_identity"))
		if err != nil {
			return err
		}
		checks = append(checks, mongostore.Pinger{Client: mongoClient}, redisstore.Pinger{Client: rdb})
	}

	// --- Core services ---
	var resolverOpts []service.ResolverOption
	if cfg.LegacyDefaultRole != "" {
		resolverOpts = append(resolverOpts, service.WithFallbackRole(domain.Role(cfg.LegacyDefaultRole)))
	}
	resolver := service.NewSessionResolver(provider, logger.Component("session_resolver"), resolverOpts...)

	portalURLs := map[domain.Portal]string{
		domain.PortalPatients:  env.Client.Portals.Patients,
		domain.PortalDoctors:   env.Client.Portals.Doctors,
		domain.PortalCompanies: env.Client.Portals.Companies,
		domain.PortalAdmin:     env.Client.Portals.Admin,
	}
	gate := service.NewAccessGate(resolver, portalURLs, logger.Component("access_gate"))
	authService := service.NewAuthService(provider, resolver, env.Client.AppURL, logger.Component("auth_service"))

	box, err := secretbox.New(env.Server.EncryptionKey)
	if err != nil {
		return err
	}
	jar := cookie.NewJar(cookie.Config{
		Domain:     env.Client.CookieDomain,
		Secure:     cfg.CookieSecure,
		RefreshTTL: cfg.Tokens.RefreshTTL,
	}, box)

	origins := []string{strings.TrimRight(env.Client.AppURL, "/")}
	for _, p := range domain.Portals() {
		origins = append(origins, strings.TrimRight(portalURLs[p], "/"))
	}

	e := api.NewRouter(api.Deps{
		Auth:           authService,
		Sessions:       resolver,
		Gate:           gate,
		Jar:            jar,
		Checks:         checks,
		AllowedOrigins: origins,
		Log:            logger.Component("http"),
	})

	// --- Serve ---
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("identity_provider", cfg.IdentityProvider).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mail queue not drained before shutdown deadline")
	}
	log.Info().Msg("server stopped")
	return nil
}
