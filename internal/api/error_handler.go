package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/infrastructure/queue"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusUnauthorized, "no active session"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, domain.ErrRoleAlreadySelected):
		return http.StatusConflict, "role already selected"
	case errors.Is(err, domain.ErrInvalidOTP):
		return http.StatusBadRequest, "invalid or expired login link"
	case errors.Is(err, domain.ErrRoleNotSelectable),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidPortal):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSignOut):
		log.Warn().Err(err).Str("path", c.Path()).Msg("sign out rejected by identity provider")
		return http.StatusBadGateway, "sign out failed"
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "try again later"
	}

	// Unexpected error (ErrConfiguration included): log the real cause,
	// return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
