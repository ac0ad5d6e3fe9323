// Package rbac maps dashboard roles to permissions and enforces them on
// HTTP routes.
package rbac

import "slices"

// Permissions understood by the dashboard.
const (
	PermViewUsers  = "view_users"
	PermAddUser    = "add_user"
	PermEditUser   = "edit_user"
	PermDeleteUser = "delete_user"
)

// Roles carrying permissions. Any other role, including the legacy "user"
// role, holds none.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

var matrix = map[string][]string{
	RoleAdmin:   {PermViewUsers, PermAddUser, PermEditUser, PermDeleteUser},
	RoleManager: {PermViewUsers, PermAddUser, PermEditUser},
	RoleViewer:  {PermViewUsers},
}

// PermissionsFor returns a copy of the permissions granted to role.
func PermissionsFor(role string) []string {
	return slices.Clone(matrix[role])
}

// HasPermission reports whether role grants perm.
func HasPermission(role, perm string) bool {
	return slices.Contains(matrix[role], perm)
}

// CanAccessUserManagement reports whether role may open the user list.
func CanAccessUserManagement(role string) bool {
	return HasPermission(role, PermViewUsers)
}

// CanModifyUsers reports whether role may add or edit users.
func CanModifyUsers(role string) bool {
	return HasPermission(role, PermAddUser) || HasPermission(role, PermEditUser)
}
