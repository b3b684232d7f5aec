package crewkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCheckerAccessors tests the checker constructor and accessors
func TestCheckerAccessors(t *testing.T) {
	m := Member{TeamID: "team-1", UserID: managerID, DisplayName: "Bob Manager", Role: RoleManager}
	checker := NewChecker(m)

	assert.Equal(t, managerID, checker.UserID())
	assert.Equal(t, "team-1", checker.TeamID())
	assert.Equal(t, RoleManager, checker.Role())
	assert.Equal(t, m, checker.Member())
}

// TestCheckerCan tests permission checks for each role
func TestCheckerCan(t *testing.T) {
	worker := NewChecker(Member{UserID: workerID, Role: RoleFieldWorker})
	assert.True(t, worker.Can(PermIncidentsCreate))
	assert.True(t, worker.Can(PermPhotosUpload))
	assert.False(t, worker.Can(PermIncidentsAssign))
	assert.False(t, worker.Can(PermBillingView))

	manager := NewChecker(Member{UserID: managerID, Role: RoleManager})
	assert.True(t, manager.Can(PermIncidentsAssign))
	assert.False(t, manager.Can(PermBillingManage))

	admin := NewChecker(Member{UserID: adminID, Role: RoleAdmin})
	assert.True(t, admin.Can(PermSettingsManage))
}

// TestCheckerDeletedMember tests that a deleted member holds nothing
func TestCheckerDeletedMember(t *testing.T) {
	checker := NewChecker(Member{UserID: goneID, Role: RoleAdmin, IsDeleted: true})

	assert.Empty(t, checker.Role())
	assert.False(t, checker.Can(PermIncidentsCreate))
	assert.Empty(t, checker.GetPermissions())
	assert.Empty(t, checker.GetAssignableRoles())
	assert.False(t, checker.IsAtLeast(RoleFieldWorker))
}

// TestCheckerAnyAll tests the multi-permission helpers
func TestCheckerAnyAll(t *testing.T) {
	manager := NewChecker(Member{UserID: managerID, Role: RoleManager})

	assert.True(t, manager.HasAnyPermission([]Permission{PermBillingManage, PermBillingView}))
	assert.False(t, manager.HasAnyPermission([]Permission{PermBillingManage, PermSettingsManage}))
	assert.False(t, manager.HasAnyPermission(nil))

	assert.True(t, manager.HasAllPermissions([]Permission{PermBillingView, PermAuditView}))
	assert.False(t, manager.HasAllPermissions([]Permission{PermBillingView, PermBillingManage}))
	assert.True(t, manager.HasAllPermissions(nil))
}

// TestCheckerHierarchy tests level comparisons and assignable roles
func TestCheckerHierarchy(t *testing.T) {
	manager := NewChecker(Member{UserID: managerID, Role: RoleManager})

	assert.True(t, manager.IsAtLeast(RoleFieldWorker))
	assert.True(t, manager.IsAtLeast(RoleManager))
	assert.False(t, manager.IsAtLeast(RoleAdmin))

	assert.Equal(t, []Role{RoleFieldWorker}, manager.GetAssignableRoles())
	assert.True(t, manager.CanAssignRole(RoleFieldWorker))
	assert.False(t, manager.CanAssignRole(RoleManager))

	admin := NewChecker(Member{UserID: adminID, Role: RoleAdmin})
	assert.True(t, admin.CanAssignRole(RoleAdmin))

	worker := NewChecker(Member{UserID: workerID, Role: RoleFieldWorker})
	assert.False(t, worker.CanAssignRole(RoleFieldWorker))
}
