// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted system access, including user management
	RoleAdmin UserRole = "admin"

	// Default role for registered users
	RoleStandard UserRole = "standard"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleStandard
}

// IsAdmin is shorthand for the one privileged role.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleAdmin:
		return 20
	case RoleStandard:
		return 10
	default:
		return 0
	}
}

// # Account States

// AccountState is the lifecycle state of an account. Suspension overrides every
// role-based grant.
type AccountState string

const (
	StateActive    AccountState = "active"
	StateSuspended AccountState = "suspended"
)

// Valid reports whether s is a known state.
func (s AccountState) Valid() bool {
	return s == StateActive || s == StateSuspended
}
