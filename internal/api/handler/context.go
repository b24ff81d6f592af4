package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/api/middleware"
	"github.com/carelink/portal-auth/internal/core/domain"
)

// ctxSession returns the session the access middleware stored. A missing
// session means the route was registered without a guard.
func ctxSession(c echo.Context) (*domain.UserSession, error) {
	s, _ := c.Get(middleware.SessionKey).(*domain.UserSession)
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return s, nil
}

// bindAndValidate binds the request body into dst and runs the validator.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
