package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// RequirePortal guards a portal's pages. Anything but an allowed decision is
// answered with a single redirect to the decision's location.
func RequirePortal(gate ports.AccessGate, portal domain.Portal) echo.MiddlewareFunc {
	return require(gate, ports.AccessRequirement{Portal: portal})
}

// RequireRole guards routes reserved for one role. platform_admin passes too.
func RequireRole(gate ports.AccessGate, role domain.Role) echo.MiddlewareFunc {
	return require(gate, ports.AccessRequirement{Role: role})
}

func require(gate ports.AccessGate, base ports.AccessRequirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := base
			req.ReturnTo = c.Request().URL.RequestURI()

			d, err := gate.Evaluate(c.Request().Context(), req)
			if err != nil {
				return err
			}
			if !d.Allowed() {
				return c.Redirect(http.StatusFound, d.Location)
			}
			c.Set(SessionKey, d.Session)
			return next(c)
		}
	}
}

// NoStore marks responses as private and uncacheable. Auth responses carry
// tokens and per-user redirects.
func NoStore() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderCacheControl, "no-store")
			h.Set("Pragma", "no-cache")
			h.Set(echo.HeaderReferrerPolicy, "same-origin")
			return next(c)
		}
	}
}
