// Package rbac holds the static role table and evaluates permission checks
// against it. The table is built once at package init and never mutated.
package rbac

import (
	"sort"

	"agency-crm-api/internal/model"
)

var rolePermissions = map[model.Role][]model.Permission{
	model.RoleSuperAdmin: allPermissions(),
	model.RoleChefDeBureau: {
		model.PermUsersRead, model.PermUsersCreate, model.PermUsersUpdate,
		model.PermClientsRead, model.PermClientsCreate, model.PermClientsUpdate, model.PermClientsDelete,
		model.PermSuggestedClientsRead, model.PermSuggestedClientsCreate, model.PermSuggestedClientsUpdate, model.PermSuggestedClientsDelete,
		model.PermOrdersRead, model.PermOrdersCreate, model.PermOrdersUpdate, model.PermOrdersConfirm,
		model.PermPaymentsRead, model.PermPaymentsCreate,
		model.PermTasksRead, model.PermTasksCreate, model.PermTasksUpdate,
		model.PermReportsRead,
	},
	model.RoleCloser: {
		model.PermClientsRead, model.PermClientsCreate, model.PermClientsUpdate,
		model.PermSuggestedClientsRead,
		model.PermOrdersRead, model.PermOrdersCreate,
		model.PermTasksRead, model.PermTasksUpdate,
	},
	model.RoleCommercial: {
		model.PermClientsRead, model.PermClientsCreate, model.PermClientsUpdate,
		model.PermSuggestedClientsRead, model.PermSuggestedClientsCreate,
		model.PermOrdersRead, model.PermOrdersCreate, model.PermOrdersUpdate,
		model.PermTasksRead, model.PermTasksCreate, model.PermTasksUpdate,
	},
	model.RoleComptable: {
		model.PermClientsRead,
		model.PermOrdersRead, model.PermOrdersConfirm,
		model.PermPaymentsRead, model.PermPaymentsCreate,
		model.PermReportsRead,
	},
}

var table = buildTable(rolePermissions)

func allPermissions() []model.Permission {
	perms := make([]model.Permission, len(model.DefaultPermissions))
	for i, p := range model.DefaultPermissions {
		perms[i] = p.Code
	}
	return perms
}

func buildTable(src map[model.Role][]model.Permission) map[model.Role]map[model.Permission]struct{} {
	out := make(map[model.Role]map[model.Permission]struct{}, len(src))
	for role, perms := range src {
		set := make(map[model.Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		out[role] = set
	}
	return out
}

// Evaluate reports whether role is granted permission. Unknown roles are denied.
func Evaluate(role model.Role, permission model.Permission) bool {
	set, ok := table[role]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}

// EvaluateAll reports whether role holds every permission. The second return
// value is the first missing permission when the check fails.
func EvaluateAll(role model.Role, permissions ...model.Permission) (bool, model.Permission) {
	for _, p := range permissions {
		if !Evaluate(role, p) {
			return false, p
		}
	}
	return true, ""
}

// Permissions returns a sorted copy of the permissions granted to role.
func Permissions(role model.Role) []model.Permission {
	set := table[role]
	out := make([]model.Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionStrings is Permissions as plain strings, for token claims and responses.
func PermissionStrings(role model.Role) []string {
	perms := Permissions(role)
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Granted reports whether at least one role holds permission. A permission
// nobody holds makes the route it guards unreachable.
func Granted(permission model.Permission) bool {
	for _, set := range table {
		if _, ok := set[permission]; ok {
			return true
		}
	}
	return false
}
