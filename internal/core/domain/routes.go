package domain

import (
	"net/url"
	"strings"
)

// Well-known routes shared by every portal application.
const (
	RouteLanding        = "/"
	RouteLogin          = "/auth/login"
	RouteRegister       = "/auth/register"
	RouteCallback       = "/auth/callback"
	RouteSelectRole     = "/auth/select-role"
	RouteForgotPassword = "/auth/forgot-password"

	RouteDashboard      = "/dashboard"
	RouteAdminDashboard = "/admin/dashboard"

	// ReturnToParam carries the originally requested path through the login flow.
	ReturnToParam = "returnTo"
)

// HomeRoute returns the landing route of portal inside its own application.
func HomeRoute(portal Portal) string {
	switch portal {
	case PortalAdmin:
		return RouteAdminDashboard
	case PortalPatients, PortalDoctors, PortalCompanies:
		return RouteDashboard
	}
	return RouteLanding
}

// LoginRoute returns the login route, carrying returnTo when it is a safe
// same-origin path.
func LoginRoute(returnTo string) string {
	safe, ok := SafeReturnTo(returnTo)
	if !ok {
		return RouteLogin
	}
	q := url.Values{}
	q.Set(ReturnToParam, safe)
	return RouteLogin + "?" + q.Encode()
}

// SafeReturnTo accepts only relative, same-origin paths ("/x?y"), rejecting
// scheme-relative ("//host"), absolute, and backslash-smuggled values.
func SafeReturnTo(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "", false
	}
	if strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return u.RequestURI(), true
}
