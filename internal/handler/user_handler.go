package handler

import (
	"agency-crm-api/internal/middleware"
	"agency-crm-api/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func auditID(c *fiber.Ctx) string {
	if id, ok := c.Locals(middleware.LocalUserID).(string); ok && id != "" {
		return id
	}
	return "system"
}

// CreateUser handles user creation
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid JSON")
	}

	user, err := h.userService.CreateUser(c.UserContext(), &req, auditID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusCreated, "User created successfully", user.ToResponse())
}

// GetUsers returns all users
// GET /api/v1/users
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userService.GetAllUsers(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", users)
}

// GetUser returns a single user
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	user, err := h.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", user)
}

// UpdateUser handles user update
// PUT /api/v1/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var req service.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid JSON")
	}

	user, err := h.userService.UpdateUser(c.UserContext(), userID, &req, auditID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "User updated successfully", user.ToResponse())
}

// DeleteUser handles user deletion
// DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	if userID.String() == auditID(c) {
		return failure(c, fiber.StatusBadRequest, "You cannot delete your own account")
	}

	if err := h.userService.DeleteUser(c.UserContext(), userID, auditID(c)); err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "User deleted successfully", nil)
}
