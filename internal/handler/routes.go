package handler

import (
	"agency-crm-api/internal/middleware"
	"agency-crm-api/internal/model"
	"agency-crm-api/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth            *AuthHandler
	User            *UserHandler
	Credit          *CreditHandler
	SuggestedClient *SuggestedClientHandler
	Role            *RoleHandler
}

// RegisterRoutes mounts the API under /api/v1 and, when hub is set, the websocket at /ws.
func RegisterRoutes(app *fiber.App, h Handlers, auth middleware.Authenticator, perms middleware.Permissions, hub *ws.Hub) {
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	authGroup := api.Group("/auth")
	authGroup.Post("/login", h.Auth.Login)
	authGroup.Post("/reset-password", h.Auth.ResetPassword)
	authGroup.Post("/validate-token", h.Auth.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(auth))

	// Credits
	credits := protected.Group("/credits")
	credits.Get("/status", h.Credit.GetStatus)
	credits.Post("/reveal-phone/:clientId", perms.RequirePermission(model.PermSuggestedClientsRead), h.Credit.RevealPhone)
	credits.Get("/history", h.Credit.GetHistory)
	credits.Get("/history/:userId", h.Credit.GetHistory)
	credits.Post("/add", perms.RequirePermission(model.PermUsersUpdate), h.Credit.AddCredits)
	credits.Get("/all-closers", perms.RequirePermission(model.PermUsersRead), h.Credit.GetAllClosers)
	credits.Post("/initialize", perms.RequirePermission(model.PermUsersUpdate), h.Credit.InitializeCredits)

	// Suggested clients
	clients := protected.Group("/suggested-clients")
	clients.Get("/", perms.RequirePermission(model.PermSuggestedClientsRead), h.SuggestedClient.GetClients)
	clients.Get("/:id", perms.RequirePermission(model.PermSuggestedClientsRead), h.SuggestedClient.GetClient)
	clients.Post("/", perms.RequirePermission(model.PermSuggestedClientsCreate), h.SuggestedClient.CreateClient)
	clients.Put("/:id", perms.RequirePermission(model.PermSuggestedClientsUpdate), h.SuggestedClient.UpdateClient)
	clients.Delete("/:id", perms.RequirePermission(model.PermSuggestedClientsDelete), h.SuggestedClient.DeleteClient)

	// User management
	protected.Get("/users", perms.RequirePermission(model.PermUsersRead), h.User.GetUsers)
	protected.Get("/users/:id", perms.RequirePermission(model.PermUsersRead), h.User.GetUser)
	protected.Post("/users", perms.RequirePermission(model.PermUsersCreate), h.User.CreateUser)
	protected.Put("/users/:id", perms.RequirePermission(model.PermUsersUpdate), h.User.UpdateUser)
	protected.Delete("/users/:id", perms.RequirePermission(model.PermUsersDelete), h.User.DeleteUser)

	// Role table
	protected.Get("/roles", h.Role.GetRoles)
	protected.Get("/permissions", h.Role.GetPermissions)

	if hub == nil {
		return
	}

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}, middleware.RequireSocketAuth(auth))
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		rawID, _ := c.Locals(middleware.LocalUserID).(string)
		id, _ := uuid.Parse(rawID)
		role, _ := c.Locals(middleware.LocalUserRole).(string)
		hub.Register <- ws.Client{Conn: c, Subscriber: ws.Subscriber{UserID: id, Role: model.Role(role)}}
		defer func() { hub.Unregister <- c }()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
