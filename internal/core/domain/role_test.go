package domain

import (
	"errors"
	"testing"
)

func TestIsValidRole(t *testing.T) {
	for _, r := range Roles() {
		if !IsValidRole(string(r)) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	for _, bad := range []string{"", "admin", "Doctor", "patients", "company", "root"} {
		if IsValidRole(bad) {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
}

func TestPortalRoleRoundTrip(t *testing.T) {
	seen := make(map[Role]Portal)
	for _, r := range Roles() {
		p, err := PortalForRole(r)
		if err != nil {
			t.Fatalf("PortalForRole(%s): %v", r, err)
		}
		back, ok := RoleForPortal(p)
		if !ok || back != r {
			t.Errorf("round trip %s -> %s -> %s", r, p, back)
		}
		seen[r] = p
	}

	owners := make(map[Portal]Role)
	for r, p := range seen {
		if other, dup := owners[p]; dup {
			t.Fatalf("portal %s mapped from both %s and %s", p, other, r)
		}
		owners[p] = r
	}
	if len(owners) != len(Portals()) {
		t.Fatalf("expected every portal to be some role's home, got %v", owners)
	}
}

func TestPortalForRole_Unknown(t *testing.T) {
	for _, r := range []Role{RoleUnassigned, "superuser"} {
		if _, err := PortalForRole(r); !errors.Is(err, ErrConfiguration) {
			t.Errorf("role %q: expected ErrConfiguration, got %v", r, err)
		}
	}
}

func TestRoleForPortal_Unknown(t *testing.T) {
	if _, ok := RoleForPortal("pharmacies"); ok {
		t.Fatalf("expected unknown portal to have no role")
	}
}

func TestCanAccessPortal_PlatformAdminEverywhere(t *testing.T) {
	for _, p := range Portals() {
		if !CanAccessPortal(RolePlatformAdmin, p) {
			t.Errorf("platform_admin denied %s", p)
		}
	}
	if CanAccessPortal(RolePlatformAdmin, "pharmacies") {
		t.Errorf("platform_admin granted unknown portal")
	}
}

func TestCanAccessPortal_OnlyHomeForOthers(t *testing.T) {
	for _, r := range Roles() {
		if r == RolePlatformAdmin {
			continue
		}
		home, _ := PortalForRole(r)
		for _, p := range Portals() {
			got := CanAccessPortal(r, p)
			if want := p == home; got != want {
				t.Errorf("CanAccessPortal(%s, %s) = %v, want %v", r, p, got, want)
			}
		}
	}
}

func TestCanAccessPortal_Unassigned(t *testing.T) {
	for _, p := range Portals() {
		if CanAccessPortal(RoleUnassigned, p) {
			t.Errorf("unassigned role granted %s", p)
		}
	}
}

func TestSelectableRoles(t *testing.T) {
	for _, r := range SelectableRoles() {
		if !r.IsSelectable() {
			t.Errorf("%s listed as selectable but IsSelectable is false", r)
		}
	}
	if RolePlatformAdmin.IsSelectable() {
		t.Fatalf("platform_admin must not be self-assignable")
	}
}

func TestParsePortal(t *testing.T) {
	p, err := ParsePortal("doctors")
	if err != nil || p != PortalDoctors {
		t.Fatalf("ParsePortal(doctors) = %s, %v", p, err)
	}
	if _, err := ParsePortal("/doctors"); !errors.Is(err, ErrInvalidPortal) {
		t.Fatalf("expected ErrInvalidPortal, got %v", err)
	}
}
