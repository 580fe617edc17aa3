package handler

import (
	"agency-crm-api/internal/middleware"
	"agency-crm-api/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SuggestedClientHandler struct {
	clientService service.SuggestedClientService
}

func NewSuggestedClientHandler(clientService service.SuggestedClientService) *SuggestedClientHandler {
	return &SuggestedClientHandler{clientService: clientService}
}

// GetClients lists leads, best score first
// GET /api/v1/suggested-clients?search=&minScore=&page=&limit=
func (h *SuggestedClientHandler) GetClients(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	query := service.ListClientsQuery{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", service.DefaultPageLimit),
	}
	if c.Query("minScore") != "" {
		minScore := c.QueryInt("minScore", 0)
		query.MinScore = &minScore
	}

	page, err := h.clientService.List(c.UserContext(), actor, query)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", page)
}

// GetClient returns one lead
// GET /api/v1/suggested-clients/:id
func (h *SuggestedClientHandler) GetClient(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid client ID")
	}

	client, err := h.clientService.Get(c.UserContext(), actor, id)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", client)
}

// CreateClient adds a lead
// POST /api/v1/suggested-clients
func (h *SuggestedClientHandler) CreateClient(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req service.SuggestedClientRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid JSON")
	}

	client, err := h.clientService.Create(c.UserContext(), actor, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusCreated, "Client created successfully", client)
}

// UpdateClient replaces a lead's fields
// PUT /api/v1/suggested-clients/:id
func (h *SuggestedClientHandler) UpdateClient(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	var req service.SuggestedClientRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid JSON")
	}

	client, err := h.clientService.Update(c.UserContext(), actor, id, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Client updated successfully", client)
}

// DeleteClient removes a lead
// DELETE /api/v1/suggested-clients/:id
func (h *SuggestedClientHandler) DeleteClient(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid client ID")
	}
	if err := h.clientService.Delete(c.UserContext(), id); err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Client deleted successfully", nil)
}
