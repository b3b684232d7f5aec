package crewkit

import (
	"context"
	"slices"
	"strings"
)

// Permission is a single named capability in "resource:action" form.
// The set is closed: only the constants below are granted by any role.
type Permission string

const (
	PermIncidentsCreate    Permission = "incidents:create"
	PermIncidentsReadOwn   Permission = "incidents:read_own"
	PermIncidentsReadAll   Permission = "incidents:read_all"
	PermIncidentsUpdateOwn Permission = "incidents:update_own"
	PermIncidentsUpdateAll Permission = "incidents:update_all"
	PermIncidentsAssign    Permission = "incidents:assign"
	PermIncidentsDelete    Permission = "incidents:delete"
	PermPhotosUpload       Permission = "photos:upload"
	PermPhotosDelete       Permission = "photos:delete"
	PermClientsRead        Permission = "clients:read"
	PermClientsManage      Permission = "clients:manage"
	PermBillingView        Permission = "billing:view"
	PermBillingManage      Permission = "billing:manage"
	PermInvoicesGenerate   Permission = "invoices:generate"
	PermReportsView        Permission = "reports:view"
	PermUsersViewAll       Permission = "users:view_all"
	PermUsersInvite        Permission = "users:invite"
	PermUsersRemove        Permission = "users:remove"
	PermUsersManageRoles   Permission = "users:manage_roles"
	PermAuditView          Permission = "audit:view"
	PermSettingsManage     Permission = "settings:manage"
)

// AllPermissions lists every known permission in catalogue order.
var AllPermissions = []Permission{
	PermIncidentsCreate,
	PermIncidentsReadOwn,
	PermIncidentsReadAll,
	PermIncidentsUpdateOwn,
	PermIncidentsUpdateAll,
	PermIncidentsAssign,
	PermIncidentsDelete,
	PermPhotosUpload,
	PermPhotosDelete,
	PermClientsRead,
	PermClientsManage,
	PermBillingView,
	PermBillingManage,
	PermInvoicesGenerate,
	PermReportsView,
	PermUsersViewAll,
	PermUsersInvite,
	PermUsersRemove,
	PermUsersManageRoles,
	PermAuditView,
	PermSettingsManage,
}

// String returns the permission name.
func (p Permission) String() string {
	return string(p)
}

// Resource returns the part before the colon ("incidents" for "incidents:create").
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Action returns the part after the colon ("create" for "incidents:create").
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ":")
	return action
}

// IsKnown reports whether p is one of the catalogue permissions.
func (p Permission) IsKnown() bool {
	return slices.Contains(AllPermissions, p)
}

// ParsePermission validates a permission string.
// A valid permission is "resource:action" built from [a-z0-9_] and must be
// part of the catalogue. Matching is exact; wildcards are not supported.
func ParsePermission(s string) (Permission, error) {
	if s == "" {
		return "", invalidArgument("permission cannot be empty")
	}

	resource, action, found := strings.Cut(s, ":")
	if !found || resource == "" || action == "" {
		return "", invalidArgument("permission must have the form resource:action")
	}

	for _, part := range []string{resource, action} {
		for _, c := range part {
			if !isValidPermissionChar(c) {
				return "", invalidArgument("permission contains invalid character")
			}
		}
	}

	p := Permission(s)
	if !p.IsKnown() {
		return "", invalidArgument("unknown permission %q", s)
	}
	return p, nil
}

func isValidPermissionChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// PermissionOracle answers permission questions from the role catalogue and,
// for member-level checks, the identity resolver.
type PermissionOracle struct {
	resolver IdentityResolver
}

// NewPermissionOracle creates a PermissionOracle backed by resolver.
func NewPermissionOracle(resolver IdentityResolver) *PermissionOracle {
	return &PermissionOracle{resolver: resolver}
}

// HasPermission reports whether role grants permission. Exact set membership.
func (o *PermissionOracle) HasPermission(role Role, permission Permission) bool {
	return HasPermission(role, permission)
}

// PermissionsOf returns the full permission set of a role.
func (o *PermissionOracle) PermissionsOf(role Role) []Permission {
	return PermissionsOf(role)
}

// Require resolves the member and fails unless their role grants permission.
func (o *PermissionOracle) Require(ctx context.Context, userID, teamID string, permission Permission) error {
	member, err := resolveLive(ctx, o.resolver, userID, teamID)
	if err != nil {
		return err
	}
	return o.RequireMember(member, permission)
}

// RequireMember fails with ErrInsufficientPermissions unless the already
// resolved member's role grants permission. The member is reported as actor.
func (o *PermissionOracle) RequireMember(member *Member, permission Permission) error {
	if !HasPermission(member.Role, permission) {
		return NewError(ErrInsufficientPermissions, "missing "+permission.String()).
			WithTeam(member.TeamID).
			WithActor(member.UserID).
			WithRole(member.Role)
	}
	return nil
}

// HasPermission reports whether role grants permission.
func HasPermission(role Role, permission Permission) bool {
	def, ok := lookupDefinition(role)
	if !ok {
		return false
	}
	return slices.Contains(def.Permissions, permission)
}

// PermissionsOf returns a copy of the permissions granted by role.
// Unknown roles grant nothing.
func PermissionsOf(role Role) []Permission {
	def, ok := lookupDefinition(role)
	if !ok {
		return nil
	}
	return slices.Clone(def.Permissions)
}
