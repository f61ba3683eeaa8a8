package model

// Role represents a caller's permission level.
type Role int

const (
	RoleUser      Role = iota // default role, no moderation powers
	RoleModerator             // can warn, kick and ban
	RoleAdmin                 // full control including IP bans
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleAdmin
}

// ParseRole converts a string to a Role.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "moderator":
		return RoleModerator
	default:
		return RoleUser
	}
}

// Permission is a named permission string gating a moderator-facing command
// or notification group.
type Permission string

const (
	PermBan      Permission = "warden.ban"
	PermUnban    Permission = "warden.unban"
	PermBanList  Permission = "warden.banlist"
	PermBanInfo  Permission = "warden.baninfo"
	PermWarn     Permission = "warden.warn"
	PermWarnings Permission = "warden.warnings"
	PermIPBan    Permission = "warden.ipban"

	// PermNotify receives moderation broadcasts (new bans, revocations, warnings).
	PermNotify Permission = "warden.notify"
)
