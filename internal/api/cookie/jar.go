// Package cookie moves session tokens between HTTP requests and
// ports.Credentials. The refresh token is sealed before it leaves the server.
package cookie

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/secretbox"
)

const (
	AccessName  = "portal_access"
	RefreshName = "portal_refresh"

	// refreshPath limits the refresh cookie to the endpoints that consume it.
	refreshPath = "/api/v1/auth"
)

// Config holds cookie attributes shared by every portal.
type Config struct {
	// Domain is NEXT_PUBLIC_COOKIE_DOMAIN; "localhost" yields host-only cookies.
	Domain     string
	Secure     bool
	RefreshTTL time.Duration
}

// Jar reads and writes the session cookies.
type Jar struct {
	cfg Config
	box *secretbox.Box
	now func() time.Time
}

func NewJar(cfg Config, box *secretbox.Box) *Jar {
	if strings.EqualFold(cfg.Domain, "localhost") {
		cfg.Domain = ""
	}
	return &Jar{cfg: cfg, box: box, now: time.Now}
}

// Set stores s in the response. Access cookies live until the token expires.
func (j *Jar) Set(c echo.Context, s *domain.UserSession) error {
	sealed, err := j.box.Seal(s.RefreshToken)
	if err != nil {
		return err
	}

	maxAge := int(s.ExpiresAt.Sub(j.now()).Seconds())
	if maxAge <= 0 {
		maxAge = 60
	}
	c.SetCookie(j.cookie(AccessName, s.AccessToken, "/", maxAge))
	c.SetCookie(j.cookie(RefreshName, sealed, refreshPath, int(j.cfg.RefreshTTL.Seconds())))
	return nil
}

// Clear expires both cookies.
func (j *Jar) Clear(c echo.Context) {
	c.SetCookie(j.cookie(AccessName, "", "/", -1))
	c.SetCookie(j.cookie(RefreshName, "", refreshPath, -1))
}

// Credentials extracts tokens from r. An Authorization bearer token takes
// precedence over the access cookie. Unreadable refresh cookies are ignored.
func (j *Jar) Credentials(r *http.Request) ports.Credentials {
	var creds ports.Credentials

	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			creds.AccessToken = strings.TrimSpace(parts[1])
		}
	}
	if creds.AccessToken == "" {
		if ck, err := r.Cookie(AccessName); err == nil {
			creds.AccessToken = ck.Value
		}
	}
	if ck, err := r.Cookie(RefreshName); err == nil && ck.Value != "" {
		if rt, err := j.box.Open(ck.Value); err == nil {
			creds.RefreshToken = rt
		}
	}
	return creds
}

func (j *Jar) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   j.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   j.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
