package domain

import "fmt"

// Role is the authorization tag assigned to a user identity.
type Role string

const (
	// RoleUnassigned marks an identity that has not completed role selection yet.
	RoleUnassigned    Role = ""
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RoleCompanyAdmin  Role = "company_admin"
	RolePlatformAdmin Role = "platform_admin"
)

// Portal identifies a destination application surface.
type Portal string

const (
	PortalPatients  Portal = "patients"
	PortalDoctors   Portal = "doctors"
	PortalCompanies Portal = "companies"
	PortalAdmin     Portal = "admin"
)

var (
	allRoles   = []Role{RolePatient, RoleDoctor, RoleCompanyAdmin, RolePlatformAdmin}
	allPortals = []Portal{PortalPatients, PortalDoctors, PortalCompanies, PortalAdmin}
)

// Roles returns every valid role in registry order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Portals returns every valid portal in registry order.
func Portals() []Portal {
	out := make([]Portal, len(allPortals))
	copy(out, allPortals)
	return out
}

// SelectableRoles are the roles a user may assign to themselves during onboarding.
// platform_admin is only ever granted out of band.
func SelectableRoles() []Role {
	return []Role{RolePatient, RoleDoctor, RoleCompanyAdmin}
}

// IsValidRole reports whether candidate names a role in the closed role set.
func IsValidRole(candidate string) bool {
	switch Role(candidate) {
	case RolePatient, RoleDoctor, RoleCompanyAdmin, RolePlatformAdmin:
		return true
	}
	return false
}

// IsValidPortal reports whether candidate names a known portal.
func IsValidPortal(candidate string) bool {
	_, ok := RoleForPortal(Portal(candidate))
	return ok
}

// ParseRole converts untrusted input into a Role.
func ParseRole(s string) (Role, error) {
	if !IsValidRole(s) {
		return RoleUnassigned, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return Role(s), nil
}

// ParsePortal converts untrusted input into a Portal.
func ParsePortal(s string) (Portal, error) {
	if !IsValidPortal(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPortal, s)
	}
	return Portal(s), nil
}

// IsSelectable reports whether r can be chosen by the user during onboarding.
func (r Role) IsSelectable() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleCompanyAdmin:
		return true
	}
	return false
}

// PortalForRole returns the home portal of role. Roles outside the registry
// (possible when a role string crosses a system boundary) yield ErrConfiguration.
func PortalForRole(role Role) (Portal, error) {
	switch role {
	case RolePatient:
		return PortalPatients, nil
	case RoleDoctor:
		return PortalDoctors, nil
	case RoleCompanyAdmin:
		return PortalCompanies, nil
	case RolePlatformAdmin:
		return PortalAdmin, nil
	}
	return "", fmt.Errorf("%w: no portal registered for role %q", ErrConfiguration, role)
}

// RoleForPortal is the inverse of PortalForRole. The second result is false
// for unknown portals.
func RoleForPortal(portal Portal) (Role, bool) {
	switch portal {
	case PortalPatients:
		return RolePatient, true
	case PortalDoctors:
		return RoleDoctor, true
	case PortalCompanies:
		return RoleCompanyAdmin, true
	case PortalAdmin:
		return RolePlatformAdmin, true
	}
	return RoleUnassigned, false
}

// CanAccessPortal reports whether role may enter portal: its own home portal,
// or any portal for platform_admin.
func CanAccessPortal(role Role, portal Portal) bool {
	if _, ok := RoleForPortal(portal); !ok {
		return false
	}
	if role == RolePlatformAdmin {
		return true
	}
	home, err := PortalForRole(role)
	if err != nil {
		return false
	}
	return home == portal
}
