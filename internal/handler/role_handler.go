package handler

import (
	"agency-crm-api/internal/model"
	"agency-crm-api/internal/rbac"

	"github.com/gofiber/fiber/v2"
)

type RoleHandler struct{}

func NewRoleHandler() *RoleHandler {
	return &RoleHandler{}
}

type roleView struct {
	model.RoleInfo
	Permissions []string `json:"permissions"`
}

// GetRoles returns all available roles with what they grant
// GET /api/v1/roles
func (h *RoleHandler) GetRoles(c *fiber.Ctx) error {
	roles := make([]roleView, len(model.DefaultRoles))
	for i, info := range model.DefaultRoles {
		roles[i] = roleView{RoleInfo: info, Permissions: rbac.PermissionStrings(info.Code)}
	}
	return success(c, fiber.StatusOK, "", roles)
}

// GetPermissions lists every permission string
// GET /api/v1/permissions
func (h *RoleHandler) GetPermissions(c *fiber.Ctx) error {
	return success(c, fiber.StatusOK, "", model.DefaultPermissions)
}
