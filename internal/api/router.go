package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/carelink/portal-auth/docs"
	"github.com/carelink/portal-auth/internal/api/cookie"
	"github.com/carelink/portal-auth/internal/api/handler"
	"github.com/carelink/portal-auth/internal/api/middleware"
	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/infrastructure/http/handlers"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Auth     ports.AuthService
	Sessions ports.SessionResolver
	Gate     ports.AccessGate
	Jar      *cookie.Jar
	// Checks back the readiness probe.
	Checks []handlers.Checker
	// AllowedOrigins are the portal front-ends allowed to call the API with
	// credentials.
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.Secure())
	if len(d.AllowedOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins:     d.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
			AllowCredentials: true,
		}))
	}
	e.Use(middleware.Session(d.Jar))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Sessions, d.Gate, d.Jar, d.Log)
	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Gate)
	portalHandler := handler.NewPortalHandler()

	// --- Auth routes ---
	auth := e.Group("/api/v1/auth", middleware.NoStore())
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/otp", authHandler.RequestMagicLink)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/select-role", authHandler.SelectRole,
		middleware.RequireAuth(d.Gate, ports.AccessRequirement{AllowPendingRoleSelection: true}))

	e.GET(domain.RouteCallback, authHandler.Callback, middleware.NoStore())

	// --- Session introspection ---
	api := e.Group("/api/v1", middleware.NoStore())
	api.GET("/session", sessionHandler.Current)
	api.GET("/gate", sessionHandler.Evaluate)
	api.GET("/registry", portalHandler.Registry, middleware.RequireRole(d.Gate, domain.RolePlatformAdmin))

	// --- Portals ---
	for _, p := range domain.Portals() {
		g := e.Group("/portals/"+string(p), middleware.NoStore(), middleware.RequirePortal(d.Gate, p))
		g.GET("/me", portalHandler.Me(p))
	}

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(d.Checks...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
