package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of ERP actor roles.
// Authorization decisions are made against this type, never raw strings, so an
// unrecognized role fails at the boundary instead of silently passing a gate.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleFaculty    Role = "FACULTY"
	RoleLibrarian  Role = "LIBRARIAN"
	RoleFeeClerk   Role = "FEE_CLERK"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// AllRoles lists every recognized role, in privilege-neutral order.
var AllRoles = []Role{
	RoleStudent,
	RoleFaculty,
	RoleLibrarian,
	RoleFeeClerk,
	RoleAdmin,
	RoleSuperAdmin,
}

// ParseRole canonicalizes and validates a role string.
func ParseRole(raw string) (Role, error) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, role := range AllRoles {
		if candidate == role {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// OneOf reports allow-list membership for route gates.
// An empty allow-list means any valid role passes.
func (r Role) OneOf(allowed ...Role) bool {
	if len(allowed) == 0 {
		return r.Valid()
	}
	for _, role := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
