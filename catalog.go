package crewkit

import (
	"slices"
)

// Role is one of the fixed authorization tiers of a team.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleFieldWorker Role = "field_worker"
)

// Roles lists every role from the highest level to the lowest.
var Roles = []Role{RoleAdmin, RoleManager, RoleFieldWorker}

const (
	roleIndexAdmin = iota
	roleIndexManager
	roleIndexFieldWorker
	roleCount
)

func (r Role) index() (int, bool) {
	switch r {
	case RoleAdmin:
		return roleIndexAdmin, true
	case RoleManager:
		return roleIndexManager, true
	case RoleFieldWorker:
		return roleIndexFieldWorker, true
	}
	return 0, false
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	_, ok := r.index()
	return ok
}

// Level returns the hierarchy level of the role, or 0 for unknown roles.
func (r Role) Level() int {
	def, ok := lookupDefinition(r)
	if !ok {
		return 0
	}
	return def.Level
}

// ParseRole converts a role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		if s == "" {
			return "", invalidArgument("role is required")
		}
		return "", invalidArgument("unknown role %q", s)
	}
	return r, nil
}

// RoleDefinition describes what a role may do.
// For admin, CanPromoteTo and CanDemoteFrom are empty: admin bypasses them.
type RoleDefinition struct {
	Name          Role         `json:"name"`
	DisplayName   string       `json:"displayName"`
	Description   string       `json:"description"`
	Level         int          `json:"level"`
	Permissions   []Permission `json:"permissions"`
	CanPromoteTo  []Role       `json:"canPromoteTo"`
	CanDemoteFrom []Role       `json:"canDemoteFrom"`
}

// AllowsPromotionTo reports whether the role may set a target to role r.
func (d RoleDefinition) AllowsPromotionTo(r Role) bool {
	return slices.Contains(d.CanPromoteTo, r)
}

// AllowsDemotionFrom reports whether the role may change a target currently holding r.
func (d RoleDefinition) AllowsDemotionFrom(r Role) bool {
	return slices.Contains(d.CanDemoteFrom, r)
}

// Grants reports whether the role includes permission p.
func (d RoleDefinition) Grants(p Permission) bool {
	return slices.Contains(d.Permissions, p)
}

// catalog is the process-wide role table, fixed at compile time.
var catalog = [roleCount]RoleDefinition{
	roleIndexAdmin: {
		Name:        RoleAdmin,
		DisplayName: "Administrator",
		Description: "Full access to the team, billing, settings and role management",
		Level:       100,
		Permissions: slices.Clone(AllPermissions),
	},
	roleIndexManager: {
		Name:        RoleManager,
		DisplayName: "Manager",
		Description: "Schedules crews, manages clients and incidents, and manages field worker roles",
		Level:       50,
		Permissions: []Permission{
			PermIncidentsCreate,
			PermIncidentsReadOwn,
			PermIncidentsReadAll,
			PermIncidentsUpdateOwn,
			PermIncidentsUpdateAll,
			PermIncidentsAssign,
			PermPhotosUpload,
			PermPhotosDelete,
			PermClientsRead,
			PermClientsManage,
			PermBillingView,
			PermInvoicesGenerate,
			PermReportsView,
			PermUsersViewAll,
			PermUsersInvite,
			PermUsersManageRoles,
			PermAuditView,
		},
		CanPromoteTo:  []Role{RoleFieldWorker},
		CanDemoteFrom: []Role{RoleFieldWorker},
	},
	roleIndexFieldWorker: {
		Name:        RoleFieldWorker,
		DisplayName: "Field Worker",
		Description: "Reports and works on assigned graffiti incidents",
		Level:       10,
		Permissions: []Permission{
			PermIncidentsCreate,
			PermIncidentsReadOwn,
			PermIncidentsUpdateOwn,
			PermPhotosUpload,
		},
	},
}

func lookupDefinition(r Role) (*RoleDefinition, bool) {
	i, ok := r.index()
	if !ok {
		return nil, false
	}
	return &catalog[i], true
}

// Definition returns a copy of the definition of role r.
// It panics on a role outside the closed set; use ParseRole on untrusted input.
func Definition(r Role) RoleDefinition {
	def, ok := lookupDefinition(r)
	if !ok {
		panic("crewkit: undefined role " + string(r))
	}
	return RoleDefinition{
		Name:          def.Name,
		DisplayName:   def.DisplayName,
		Description:   def.Description,
		Level:         def.Level,
		Permissions:   slices.Clone(def.Permissions),
		CanPromoteTo:  slices.Clone(def.CanPromoteTo),
		CanDemoteFrom: slices.Clone(def.CanDemoteFrom),
	}
}

// Definitions returns copies of every role definition, highest level first.
func Definitions() []RoleDefinition {
	defs := make([]RoleDefinition, 0, len(Roles))
	for _, r := range Roles {
		defs = append(defs, Definition(r))
	}
	return defs
}

// IsHigherRole reports whether a sits strictly above b in the hierarchy.
func IsHigherRole(a, b Role) bool {
	return a.Level() > b.Level()
}

// AssignableRoles returns the roles an actor holding r may assign, highest first.
// Admin may assign every role; a role without users:manage_roles assigns none.
func AssignableRoles(r Role) []Role {
	def, ok := lookupDefinition(r)
	if !ok || !def.Grants(PermUsersManageRoles) {
		return nil
	}
	if r == RoleAdmin {
		return slices.Clone(Roles)
	}

	var roles []Role
	for _, candidate := range Roles {
		if def.AllowsPromotionTo(candidate) && candidate.Level() < def.Level {
			roles = append(roles, candidate)
		}
	}
	return roles
}
