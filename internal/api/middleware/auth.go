package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/api/cookie"
	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// SessionKey is where guarded handlers find the *domain.UserSession.
const SessionKey = "session"

// Session attaches the request's credentials (cookies or bearer token) to the
// request context. It never rejects; the gate decides what a request may see.
func Session(jar *cookie.Jar) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			creds := jar.Credentials(req)
			if creds.AccessToken != "" || creds.RefreshToken != "" {
				c.SetRequest(req.WithContext(ports.WithCredentials(req.Context(), creds)))
			}
			return next(c)
		}
	}
}

// RequireAuth guards JSON endpoints. Instead of redirecting it answers with
// the gate's decision so clients can navigate themselves.
func RequireAuth(gate ports.AccessGate, req ports.AccessRequirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := gate.Evaluate(c.Request().Context(), req)
			if err != nil {
				return err
			}
			if d.Allowed() {
				c.Set(SessionKey, d.Session)
				return next(c)
			}

			status := http.StatusForbidden
			if d.Outcome == domain.OutcomeUnauthenticated {
				status = http.StatusUnauthorized
			}
			return c.JSON(status, d)
		}
	}
}
