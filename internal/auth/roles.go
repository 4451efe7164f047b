package auth

// Role represents a user role.
type Role string

const (
	// RoleViewer may read stored consolidation runs.
	RoleViewer Role = "viewer"
	// RoleOperator may submit consolidation runs.
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// NormalizeRole validates a role string.
func NormalizeRole(value string) (Role, bool) {
	switch role := Role(value); role {
	case RoleViewer, RoleOperator, RoleAdmin:
		return role, true
	}
	return "", false
}

// RoleAtLeast reports whether role satisfies required.
func RoleAtLeast(role, required Role) bool {
	return rank[role] >= rank[required]
}

var rank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}
