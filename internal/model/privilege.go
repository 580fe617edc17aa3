package model

// Permission is a "resource:action" string guarding one operation.
type Permission string

const (
	PermUsersRead   Permission = "users:read"
	PermUsersCreate Permission = "users:create"
	PermUsersUpdate Permission = "users:update"
	PermUsersDelete Permission = "users:delete"

	PermClientsRead   Permission = "clients:read"
	PermClientsCreate Permission = "clients:create"
	PermClientsUpdate Permission = "clients:update"
	PermClientsDelete Permission = "clients:delete"

	PermSuggestedClientsRead   Permission = "suggested_clients:read"
	PermSuggestedClientsCreate Permission = "suggested_clients:create"
	PermSuggestedClientsUpdate Permission = "suggested_clients:update"
	PermSuggestedClientsDelete Permission = "suggested_clients:delete"

	PermOrdersRead    Permission = "orders:read"
	PermOrdersCreate  Permission = "orders:create"
	PermOrdersUpdate  Permission = "orders:update"
	PermOrdersConfirm Permission = "orders:confirm"

	PermPaymentsRead   Permission = "payments:read"
	PermPaymentsCreate Permission = "payments:create"

	PermTasksRead   Permission = "tasks:read"
	PermTasksCreate Permission = "tasks:create"
	PermTasksUpdate Permission = "tasks:update"

	PermReportsRead Permission = "reports:read"
)

// PermissionInfo is the listing form of a Permission.
type PermissionInfo struct {
	Code Permission `json:"code"`
	Name string     `json:"name"`
}

// DefaultPermissions lists every permission string the platform knows about.
var DefaultPermissions = []PermissionInfo{
	{Code: PermUsersRead, Name: "View users"},
	{Code: PermUsersCreate, Name: "Create users"},
	{Code: PermUsersUpdate, Name: "Update users and credits"},
	{Code: PermUsersDelete, Name: "Delete users"},
	{Code: PermClientsRead, Name: "View clients"},
	{Code: PermClientsCreate, Name: "Create clients"},
	{Code: PermClientsUpdate, Name: "Update clients"},
	{Code: PermClientsDelete, Name: "Delete clients"},
	{Code: PermSuggestedClientsRead, Name: "View suggested clients"},
	{Code: PermSuggestedClientsCreate, Name: "Create suggested clients"},
	{Code: PermSuggestedClientsUpdate, Name: "Update suggested clients"},
	{Code: PermSuggestedClientsDelete, Name: "Delete suggested clients"},
	{Code: PermOrdersRead, Name: "View orders"},
	{Code: PermOrdersCreate, Name: "Create orders"},
	{Code: PermOrdersUpdate, Name: "Update orders"},
	{Code: PermOrdersConfirm, Name: "Confirm orders"},
	{Code: PermPaymentsRead, Name: "View payments"},
	{Code: PermPaymentsCreate, Name: "Record payments"},
	{Code: PermTasksRead, Name: "View tasks"},
	{Code: PermTasksCreate, Name: "Create tasks"},
	{Code: PermTasksUpdate, Name: "Update tasks"},
	{Code: PermReportsRead, Name: "View staff reports"},
}
