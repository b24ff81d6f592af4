package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
	"github.com/carelink/portal-auth/internal/pkg/metrics"
)

// AccessGate decides, once per request, whether a protected route may render.
// It never loops or retries: each evaluation yields exactly one outcome.
type AccessGate struct {
	sessions   ports.SessionResolver
	portalURLs map[domain.Portal]string
	log        zerolog.Logger
}

// NewAccessGate returns a gate over sessions. portalURLs holds each portal's
// base URL so cross-portal redirects are absolute; missing entries fall back
// to the bare home route.
func NewAccessGate(sessions ports.SessionResolver, portalURLs map[domain.Portal]string, log zerolog.Logger) *AccessGate {
	urls := make(map[domain.Portal]string, len(portalURLs))
	for p, u := range portalURLs {
		urls[p] = strings.TrimRight(u, "/")
	}
	return &AccessGate{sessions: sessions, portalURLs: urls, log: log}
}

// Evaluate resolves the current session and applies req to it.
func (g *AccessGate) Evaluate(ctx context.Context, req ports.AccessRequirement) (domain.Decision, error) {
	session := g.sessions.GetSession(ctx)

	d, err := g.decide(session, req)
	if err != nil {
		g.log.Error().Err(err).Str("portal", string(req.Portal)).Msg("access gate could not decide")
		return domain.Decision{}, err
	}

	label := string(req.Portal)
	if label == "" {
		label = "any"
	}
	metrics.GateDecisionsTotal.WithLabelValues(string(d.Outcome), label).Inc()
	return d, nil
}

func (g *AccessGate) decide(session *domain.UserSession, req ports.AccessRequirement) (domain.Decision, error) {
	if session == nil {
		route := domain.LoginRoute(req.ReturnTo)
		return domain.Decision{Outcome: domain.OutcomeUnauthenticated, Route: route, Location: route}, nil
	}

	user := session.User
	if user.RoleSelectionPending && !req.AllowPendingRoleSelection {
		return domain.Decision{
			Outcome:  domain.OutcomePendingRoleSelection,
			Route:    domain.RouteSelectRole,
			Location: domain.RouteSelectRole,
		}, nil
	}

	allowed := domain.Decision{Outcome: domain.OutcomeAllowed, Session: session}

	if req.Portal != "" {
		if !domain.IsValidPortal(string(req.Portal)) {
			return domain.Decision{}, domain.ErrInvalidPortal
		}
		if !domain.CanAccessPortal(user.Role, req.Portal) {
			return g.wrongPortal(user)
		}
	}

	if req.Role != "" && user.Role != req.Role && user.Role != domain.RolePlatformAdmin {
		return g.wrongPortal(user)
	}

	return allowed, nil
}

// wrongPortal sends the user to their own portal, looked up in the registry.
// A role without a registered portal is a configuration error, never a
// redirect to some unvalidated target.
func (g *AccessGate) wrongPortal(user domain.User) (domain.Decision, error) {
	home, err := domain.PortalForRole(user.Role)
	if err != nil {
		return domain.Decision{}, err
	}
	route := domain.HomeRoute(home)
	return domain.Decision{
		Outcome:  domain.OutcomeWrongPortal,
		Route:    route,
		Portal:   home,
		Location: g.absolute(home, route),
	}, nil
}

// PostAuthRedirect picks where a freshly signed-in user goes: role selection
// when pending, the safe returnTo when given, otherwise their home portal.
func (g *AccessGate) PostAuthRedirect(session *domain.UserSession, returnTo string) (string, error) {
	if session == nil {
		return domain.LoginRoute(returnTo), nil
	}
	if session.User.RoleSelectionPending {
		return domain.RouteSelectRole, nil
	}
	if safe, ok := domain.SafeReturnTo(returnTo); ok {
		return safe, nil
	}
	home, err := domain.PortalForRole(session.User.Role)
	if err != nil {
		return "", err
	}
	return g.absolute(home, domain.HomeRoute(home)), nil
}

func (g *AccessGate) absolute(portal domain.Portal, route string) string {
	if base := g.portalURLs[portal]; base != "" {
		return base + route
	}
	return route
}
