// Copyright (c) 2026 Motorparc. All rights reserved.

package sec

// # User Roles

// Role represents the authorization tier granted to an account.
//
// The model is intentionally flat: two tiers, no RBAC graph. Admin covers
// directory administration, Staff covers day-to-day inventory work.
type Role string

const (
	// Full access, including user directory administration
	RoleAdmin Role = "Admin"

	// Standard access for inventory and sales staff
	RoleStaff Role = "Staff"
)

// ParseRole maps a raw string onto a known [Role].
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStaff:
		return RoleStaff, true
	default:
		return "", false
	}
}

// Valid reports whether the role is one of the recognized tiers.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r Role) level() int {

	// Linear scale (10-20) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 20
	case RoleStaff:
		return 10
	default:
		return 0
	}
}
