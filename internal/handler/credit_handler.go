package handler

import (
	"encoding/json"
	"strconv"

	"agency-crm-api/internal/middleware"
	"agency-crm-api/internal/model"
	"agency-crm-api/internal/rbac"
	"agency-crm-api/internal/service"
	"agency-crm-api/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreditHandler struct {
	creditService service.CreditService
}

func NewCreditHandler(creditService service.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// AddCreditsRequest keeps amount as a raw number so fractions can be refused.
type AddCreditsRequest struct {
	UserID uuid.UUID   `json:"userId" validate:"uuid_required"`
	Amount json.Number `json:"amount" validate:"required"`
	Reason string      `json:"reason" validate:"max=255"`
}

type InitializeCreditsRequest struct {
	InitialAmount *json.Number `json:"initialAmount"`
}

// GetStatus returns the caller's balance
// GET /api/v1/credits/status
func (h *CreditHandler) GetStatus(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	status, err := h.creditService.GetStatus(c.UserContext(), actor.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", status)
}

// RevealPhone spends credits to reveal a lead's phone number
// POST /api/v1/credits/reveal-phone/:clientId
func (h *CreditHandler) RevealPhone(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	clientID, err := uuid.Parse(c.Params("clientId"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid client ID")
	}

	result, err := h.creditService.RevealPhone(c.UserContext(), actor.ID, clientID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Phone number revealed", result)
}

// GetHistory returns a page of ledger lines
// GET /api/v1/credits/history
// GET /api/v1/credits/history/:userId
func (h *CreditHandler) GetHistory(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	target := actor.ID
	if raw := c.Params("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return failure(c, fiber.StatusBadRequest, "Invalid user ID")
		}
		target = id
	}
	if target != actor.ID && !rbac.Evaluate(actor.Role, model.PermUsersRead) {
		return failure(c, fiber.StatusForbidden, "Forbidden: requires '"+string(model.PermUsersRead)+"' permission")
	}

	page, err := h.creditService.GetHistory(c.UserContext(), actor, target,
		c.QueryInt("page", 1), c.QueryInt("limit", service.DefaultPageLimit))
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", page)
}

// AddCredits recharges a closer
// POST /api/v1/credits/add
func (h *CreditHandler) AddCredits(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req AddCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid JSON")
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return failure(c, fiber.StatusBadRequest, validator.Message(errs))
	}
	amount, err := strconv.Atoi(req.Amount.String())
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Amount must be an integer")
	}

	balance, err := h.creditService.Recharge(c.UserContext(), actor, req.UserID, amount, req.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Credits added successfully", balance)
}

// GetAllClosers lists every closer with their balance
// GET /api/v1/credits/all-closers
func (h *CreditHandler) GetAllClosers(c *fiber.Ctx) error {
	closers, err := h.creditService.ListClosers(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "", closers)
}

// InitializeCredits funds every closer that has no balance yet
// POST /api/v1/credits/initialize
func (h *CreditHandler) InitializeCredits(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return failure(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	amount := service.DefaultInitialCredits
	if len(c.Body()) > 0 {
		var req InitializeCreditsRequest
		if err := c.BodyParser(&req); err != nil {
			return failure(c, fiber.StatusBadRequest, "Invalid JSON")
		}
		if req.InitialAmount != nil {
			n, err := strconv.Atoi(req.InitialAmount.String())
			if err != nil {
				return failure(c, fiber.StatusBadRequest, "Initial amount must be an integer")
			}
			amount = n
		}
	}

	result, err := h.creditService.BulkInitialize(c.UserContext(), actor, amount)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Credits initialized", result)
}
