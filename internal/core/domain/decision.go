package domain

// Outcome is the terminal state of a single access-control evaluation.
type Outcome string

const (
	OutcomeAllowed              Outcome = "allowed"
	OutcomeUnauthenticated      Outcome = "unauthenticated"
	OutcomeWrongPortal          Outcome = "wrong_portal"
	OutcomePendingRoleSelection Outcome = "pending_role_selection"
)

// Decision is what the access gate hands back to a route. Every outcome other
// than OutcomeAllowed carries a redirect target.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	// Route is the path inside the target application.
	Route string `json:"route,omitempty"`
	// Portal is set for WrongPortal redirects: the portal the user belongs to.
	Portal Portal `json:"portal,omitempty"`
	// Location is the redirect to issue: Route, made absolute when the target
	// portal has a configured base URL.
	Location string       `json:"location,omitempty"`
	Session  *UserSession `json:"-"`
}

// Allowed reports whether the route may render.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}
