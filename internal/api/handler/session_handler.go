package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// SessionHandler exposes the session resolver and access gate to clients.
type SessionHandler struct {
	sessions ports.SessionResolver
	gate     ports.AccessGate
}

func NewSessionHandler(sessions ports.SessionResolver, gate ports.AccessGate) *SessionHandler {
	return &SessionHandler{sessions: sessions, gate: gate}
}

// Current returns the caller's session, if any. Anonymous callers get 200
// with authenticated=false.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/v1/session [get]
func (h *SessionHandler) Current(c echo.Context) error {
	s := h.sessions.GetSession(c.Request().Context())
	if s == nil {
		return c.JSON(http.StatusOK, sessionResponse{})
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, User: &s.User, ExpiresAt: expiresAt(s.ExpiresAt)})
}

// Evaluate runs the access gate for a portal and/or role requirement so
// portal front-ends can guard their routes server-side.
//
// @Summary      Evaluate route access
// @Tags         session
// @Produce      json
// @Param        portal    query     string  false  "Required portal"
// @Param        role      query     string  false  "Required role"
// @Param        returnTo  query     string  false  "Path being requested"
// @Success      200       {object}  domain.Decision
// @Failure      400       {object}  map[string]string
// @Router       /api/v1/gate [get]
func (h *SessionHandler) Evaluate(c echo.Context) error {
	req := ports.AccessRequirement{ReturnTo: c.QueryParam(domain.ReturnToParam)}

	if p := c.QueryParam("portal"); p != "" {
		portal, err := domain.ParsePortal(p)
		if err != nil {
			return err
		}
		req.Portal = portal
	}
	if r := c.QueryParam("role"); r != "" {
		role, err := domain.ParseRole(r)
		if err != nil {
			return err
		}
		req.Role = role
	}

	d, err := h.gate.Evaluate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
