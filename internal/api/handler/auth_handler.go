package handler

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/api/cookie"
	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

// callbackTokenParams are the query parameters a magic link may carry its
// token in: the local provider uses "token", Supabase templates "token_hash".
var callbackTokenParams = []string{"token", "token_hash"}

// AuthHandler handles sign-in, onboarding, and sign-out.
type AuthHandler struct {
	auth     ports.AuthService
	sessions ports.SessionResolver
	gate     ports.AccessGate
	jar      *cookie.Jar
	log      zerolog.Logger
}

func NewAuthHandler(auth ports.AuthService, sessions ports.SessionResolver, gate ports.AccessGate, jar *cookie.Jar, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, gate: gate, jar: jar, log: log}
}

// Login signs in with email and password.
//
// @Summary      Sign in with password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	s, err := h.auth.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.establish(c, http.StatusOK, s, req.ReturnTo)
}

// Register creates an identity and signs it in when the provider allows it.
// New identities always go through role selection next.
//
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "New identity"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	s, err := h.auth.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		// Providers that require email confirmation refuse the sign-in.
		h.log.Debug().Err(err).Str("user_id", user.ID).Msg("sign-in after registration refused")
		return c.JSON(http.StatusCreated, authResponse{User: user, Redirect: domain.RouteLogin})
	}
	return h.establish(c, http.StatusCreated, s, "")
}

// RequestMagicLink emails a one-time sign-in link. The answer is the same
// whether or not the address is known.
//
// @Summary      Request a magic link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      magicLinkRequest  true  "Recipient"
// @Success      202   {object}  statusResponse
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/auth/otp [post]
func (h *AuthHandler) RequestMagicLink(c echo.Context) error {
	var req magicLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.auth.RequestMagicLink(c.Request().Context(), req.Email, req.ReturnTo); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, statusResponse{Status: "sent"})
}

// Callback completes a magic-link sign-in and redirects into the portals.
//
// @Summary      Magic link callback
// @Tags         auth
// @Param        token     query  string  false  "One-time token"
// @Param        returnTo  query  string  false  "Path to continue to"
// @Success      302
// @Router       /auth/callback [get]
func (h *AuthHandler) Callback(c echo.Context) error {
	var token string
	for _, p := range callbackTokenParams {
		if token = c.QueryParam(p); token != "" {
			break
		}
	}
	returnTo := c.QueryParam(domain.ReturnToParam)

	s, err := h.auth.CompleteCallback(c.Request().Context(), token)
	if err != nil {
		h.log.Info().Err(err).Msg("magic link rejected")
		q := url.Values{"error": {"link_invalid"}}
		if safe, ok := domain.SafeReturnTo(returnTo); ok {
			q.Set(domain.ReturnToParam, safe)
		}
		return c.Redirect(http.StatusFound, domain.RouteLogin+"?"+q.Encode())
	}

	if err := h.jar.Set(c, s); err != nil {
		return err
	}
	target, err := h.gate.PostAuthRedirect(s, returnTo)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, target)
}

// Logout ends the session with the provider and clears the cookies.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  authResponse
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	route, err := h.sessions.SignOut(c.Request().Context())
	h.jar.Clear(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{Redirect: route})
}

// Refresh exchanges the refresh cookie for a new session.
//
// @Summary      Refresh the session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  authResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	rt := h.jar.Credentials(c.Request()).RefreshToken

	s, err := h.auth.Refresh(c.Request().Context(), rt)
	if err != nil {
		h.jar.Clear(c)
		return err
	}
	if err := h.jar.Set(c, s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{User: &s.User, ExpiresAt: expiresAt(s.ExpiresAt)})
}

// SelectRole records the signed-in identity's role. It works once.
//
// @Summary      Select a role
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      selectRoleRequest  true  "Role"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/auth/select-role [post]
func (h *AuthHandler) SelectRole(c echo.Context) error {
	var req selectRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.SelectRole(c.Request().Context(), domain.Role(req.Role))
	if err != nil {
		return err
	}
	redirect, err := h.gate.PostAuthRedirect(&domain.UserSession{User: *user}, "")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{User: user, Redirect: redirect})
}

func (h *AuthHandler) establish(c echo.Context, status int, s *domain.UserSession, returnTo string) error {
	if err := h.jar.Set(c, s); err != nil {
		return err
	}
	redirect, err := h.gate.PostAuthRedirect(s, returnTo)
	if err != nil {
		return err
	}
	return c.JSON(status, authResponse{User: &s.User, ExpiresAt: expiresAt(s.ExpiresAt), Redirect: redirect})
}
