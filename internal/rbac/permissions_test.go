package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionMatrix(t *testing.T) {
	cases := []struct {
		role   string
		perm   string
		expect bool
	}{
		{RoleAdmin, PermDeleteUser, true},
		{RoleAdmin, PermViewUsers, true},
		{RoleManager, PermEditUser, true},
		{RoleManager, PermDeleteUser, false},
		{RoleViewer, PermViewUsers, true},
		{RoleViewer, PermAddUser, false},
		{"user", PermViewUsers, false},
		{"", PermViewUsers, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expect, HasPermission(tc.role, tc.perm), "%s/%s", tc.role, tc.perm)
	}
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, CanAccessUserManagement(RoleViewer))
	assert.False(t, CanAccessUserManagement("user"))
	assert.True(t, CanModifyUsers(RoleManager))
	assert.False(t, CanModifyUsers(RoleViewer))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleViewer)
	perms[0] = PermDeleteUser
	assert.Equal(t, []string{PermViewUsers}, PermissionsFor(RoleViewer))
	assert.Empty(t, PermissionsFor("user"))
}

func TestWritePermissionsImplyView(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleManager, RoleViewer} {
		for _, perm := range []string{PermAddUser, PermEditUser, PermDeleteUser} {
			if HasPermission(role, perm) {
				assert.True(t, HasPermission(role, PermViewUsers), "%s holds %s without %s", role, perm, PermViewUsers)
			}
		}
	}
}
