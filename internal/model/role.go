package model

// Role is the code of a staff role. Roles are fixed at build time.
type Role string

const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleChefDeBureau Role = "CHEF_DE_BUREAU"
	RoleCloser       Role = "CLOSER"
	RoleCommercial   Role = "COMMERCIAL"
	RoleComptable    Role = "COMPTABLE"
)

// RoleInfo describes a role for listing endpoints.
type RoleInfo struct {
	Code        Role   `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultRoles lists every role known to the platform, highest tier first.
var DefaultRoles = []RoleInfo{
	{Code: RoleSuperAdmin, Name: "Super Administrateur", Description: "Full platform access"},
	{Code: RoleChefDeBureau, Name: "Chef de Bureau", Description: "Office manager, runs staff and credits"},
	{Code: RoleCloser, Name: "Closer", Description: "Consumes leads, spends credits to reveal contacts"},
	{Code: RoleCommercial, Name: "Commercial", Description: "Sales staff handling clients and orders"},
	{Code: RoleComptable, Name: "Comptable", Description: "Accounting, payments and reports"},
}

// IsValid reports whether r is one of the DefaultRoles.
func (r Role) IsValid() bool {
	for _, info := range DefaultRoles {
		if info.Code == r {
			return true
		}
	}
	return false
}

// IsAdminTier reports whether r may manage other users' credits.
func (r Role) IsAdminTier() bool {
	return r == RoleSuperAdmin || r == RoleChefDeBureau
}
