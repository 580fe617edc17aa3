package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/rbac"
	"agency-crm-api/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID    = "user_id"
	LocalUserRole  = "user_role"
	LocalUserName  = "user_name"
	LocalUserEmail = "user_email"
)

// NoRoleMessage is returned when a request reaches a permission check without a role.
const NoRoleMessage = "Forbidden: no role attached to the request"

// Authenticator resolves a bearer token to the active user behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*model.User, error)
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

// RequireAuth is middleware that validates JWT token and sets user info in context
func RequireAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return reject(c, fiber.StatusUnauthorized, "Missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return reject(c, fiber.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
		}

		return authenticate(c, auth, parts[1])
	}
}

// RequireSocketAuth authenticates a websocket upgrade. Browsers cannot set
// headers on the handshake, so the token comes from the "token" query parameter.
func RequireSocketAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return reject(c, fiber.StatusUnauthorized, "Missing authorization token")
		}
		return authenticate(c, auth, token)
	}
}

func authenticate(c *fiber.Ctx, auth Authenticator, token string) error {
	user, err := auth.Authenticate(c.UserContext(), token)
	if err != nil {
		if service.KindOf(err) == service.KindInternal {
			return reject(c, fiber.StatusInternalServerError, "Failed to verify session")
		}
		return reject(c, fiber.StatusUnauthorized, message(err))
	}

	c.Locals(LocalUserID, user.ID.String())
	c.Locals(LocalUserRole, string(user.Role))
	c.Locals(LocalUserName, user.DisplayName())
	c.Locals(LocalUserEmail, user.Email)

	return c.Next()
}

func message(err error) string {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}

// CurrentActor returns the authenticated caller set by RequireAuth.
func CurrentActor(c *fiber.Ctx) (service.Actor, bool) {
	rawID, _ := c.Locals(LocalUserID).(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return service.Actor{}, false
	}
	role, _ := c.Locals(LocalUserRole).(string)
	name, _ := c.Locals(LocalUserName).(string)
	return service.Actor{ID: id, Role: model.Role(role), Name: name}, true
}

// Permissions guards routes with the static role table.
type Permissions struct {
	Logger *slog.Logger
}

func (m Permissions) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// RequirePermission checks if the authenticated role holds the permission.
func (m Permissions) RequirePermission(permission model.Permission) fiber.Handler {
	return m.RequireAllPermissions(permission)
}

// RequireAllPermissions fails with the first permission the role lacks.
func (m Permissions) RequireAllPermissions(permissions ...model.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalUserRole).(string)
		if role == "" {
			m.logger().Debug("rbac denied", "path", c.Path(), "reason", "no role")
			return reject(c, fiber.StatusForbidden, NoRoleMessage)
		}

		ok, missing := rbac.EvaluateAll(model.Role(role), permissions...)
		if !ok {
			m.logger().Debug("rbac denied", "path", c.Path(), "role", role, "missing", missing)
			return reject(c, fiber.StatusForbidden, "Forbidden: requires '"+string(missing)+"' permission")
		}

		m.logger().Debug("rbac granted", "path", c.Path(), "role", role)
		return c.Next()
	}
}
