package identity

// UserRole is an enumerated account role. Capability checks compare roles,
// never raw strings, so a typo in stored data degrades to guest rather than
// silently granting access.
type UserRole string

const (
	// RoleGuest can view public resources only.
	RoleGuest UserRole = "guest"
	// RoleMember is a regular signed-up account.
	RoleMember UserRole = "member"
	// RoleAdmin may additionally read usage statistics.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleGuest, RoleMember, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	current, ok := roleHierarchy[r]
	if !ok {
		return false
	}
	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}
	return current >= min
}

var roleHierarchy = map[UserRole]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleAdmin:  2,
}

// ParseRole safely parses a string into a UserRole. Unknown values are
// rejected rather than passed through.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}

// ParseRoleOrDefault parses a role, mapping empty or unknown input to the
// member default used for self-service signups.
func ParseRoleOrDefault(roleStr string) UserRole {
	if role, ok := ParseRole(roleStr); ok {
		return role
	}
	return RoleMember
}
