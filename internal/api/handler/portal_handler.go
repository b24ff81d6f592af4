package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/core/domain"
)

// PortalHandler serves the per-portal endpoints sitting behind RequirePortal.
type PortalHandler struct{}

func NewPortalHandler() *PortalHandler {
	return &PortalHandler{}
}

// Me returns the signed-in user as seen by portal.
//
// @Summary      Portal identity
// @Tags         portals
// @Produce      json
// @Param        portal  path      string  true  "patients, doctors, companies or admin"
// @Success      200     {object}  portalResponse
// @Success      302
// @Router       /portals/{portal}/me [get]
func (h *PortalHandler) Me(portal domain.Portal) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := ctxSession(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, portalResponse{Portal: portal, User: s.User})
	}
}

type registryEntry struct {
	Role   domain.Role   `json:"role"`
	Portal domain.Portal `json:"portal"`
	Home   string        `json:"home"`
}

// Registry lists every role with its home portal and landing route.
//
// @Summary      Role and portal registry
// @Tags         portals
// @Produce      json
// @Success      200  {array}  registryEntry
// @Success      302
// @Router       /api/v1/registry [get]
func (h *PortalHandler) Registry(c echo.Context) error {
	roles := domain.Roles()
	out := make([]registryEntry, 0, len(roles))
	for _, r := range roles {
		p, err := domain.PortalForRole(r)
		if err != nil {
			return err
		}
		out = append(out, registryEntry{Role: r, Portal: p, Home: domain.HomeRoute(p)})
	}
	return c.JSON(http.StatusOK, out)
}
