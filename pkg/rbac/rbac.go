// Package rbac provides role-based access control checks.
package rbac

import "warden/pkg/model"

// permissionMatrix maps roles to their allowed permissions.
var permissionMatrix = map[model.Role]map[model.Permission]bool{
	model.RoleAdmin: {
		model.PermBan:      true,
		model.PermUnban:    true,
		model.PermBanList:  true,
		model.PermBanInfo:  true,
		model.PermWarn:     true,
		model.PermWarnings: true,
		model.PermIPBan:    true,
		model.PermNotify:   true,
	},
	model.RoleModerator: {
		model.PermBan:      true,
		model.PermUnban:    true,
		model.PermBanList:  true,
		model.PermBanInfo:  true,
		model.PermWarn:     true,
		model.PermWarnings: true,
		model.PermNotify:   true,
	},
	model.RoleUser: {
		// No moderation permissions
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.Role, perm model.Permission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// RequirePermission returns an error message if the role lacks the permission,
// or empty string if allowed.
func RequirePermission(role model.Role, perm model.Permission) string {
	if HasPermission(role, perm) {
		return ""
	}
	return "permission denied: " + string(perm) + " requires higher role"
}
