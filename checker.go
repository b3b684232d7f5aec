package crewkit

// Checker provides permission checking capabilities for a resolved team member.
// It is typically created by the Service and stored in context for use in handlers.
type Checker struct {
	member Member
}

// NewChecker creates a new Checker for a member record.
func NewChecker(member Member) *Checker {
	return &Checker{member: member}
}

// UserID returns the user ID this checker is for.
func (c *Checker) UserID() string {
	return c.member.UserID
}

// TeamID returns the team this checker is scoped to.
func (c *Checker) TeamID() string {
	return c.member.TeamID
}

// Role returns the member's role. Deleted members report an empty role.
func (c *Checker) Role() Role {
	if c.member.IsDeleted {
		return ""
	}
	return c.member.Role
}

// Member returns a copy of the underlying member record.
func (c *Checker) Member() Member {
	return c.member
}

// Can checks if the member holds a specific permission.
//
// Example:
//
//	if checker.Can(crewkit.PermIncidentsUpdateAll) {
//	    // Member may edit any incident
//	}
func (c *Checker) Can(permission Permission) bool {
	return HasPermission(c.Role(), permission)
}

// HasAnyPermission checks if the member has any of the specified permissions.
func (c *Checker) HasAnyPermission(permissions []Permission) bool {
	for _, perm := range permissions {
		if c.Can(perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the member has all of the specified permissions.
func (c *Checker) HasAllPermissions(permissions []Permission) bool {
	for _, perm := range permissions {
		if !c.Can(perm) {
			return false
		}
	}
	return true
}

// GetPermissions returns every permission the member holds.
func (c *Checker) GetPermissions() []Permission {
	return PermissionsOf(c.Role())
}

// IsAtLeast reports whether the member's role is at or above role r.
func (c *Checker) IsAtLeast(r Role) bool {
	return c.Role().IsValid() && c.Role().Level() >= r.Level()
}

// CanAssignRole checks if the member may set another member's role to target.
// This is a catalogue answer only; it does not look at the target member.
func (c *Checker) CanAssignRole(target Role) bool {
	for _, r := range c.GetAssignableRoles() {
		if r == target {
			return true
		}
	}
	return false
}

// GetAssignableRoles returns all roles the member can assign, highest first.
//
// Example:
//
//	roles := checker.GetAssignableRoles()
//	// for a manager: [field_worker]
func (c *Checker) GetAssignableRoles() []Role {
	return AssignableRoles(c.Role())
}
