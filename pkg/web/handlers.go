// Package web exposes the engine's programmatic surface over HTTP.
package web

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/vaultpilot/automations/pkg/engine"
	"github.com/vaultpilot/automations/pkg/models"
	"github.com/vaultpilot/automations/pkg/registry"
)

type APIHandlers struct {
	engine   *engine.Engine
	validate *validator.Validate
}

func NewAPIHandlers(eng *engine.Engine, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{engine: eng, validate: validate}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	automations := app.Group("/automations")
	automations.Get("/", h.ListAutomations)
	automations.Post("/", h.CreateAutomation)
	automations.Get("/running", h.RunningAutomations)
	automations.Get("/:id", h.GetAutomation)
	automations.Patch("/:id", h.UpdateAutomation)
	automations.Delete("/:id", h.DeleteAutomation)
	automations.Post("/:id/enable", h.EnableAutomation)
	automations.Post("/:id/disable", h.DisableAutomation)
	automations.Post("/:id/run", h.RunAutomation)
	automations.Get("/:id/history", h.AutomationHistory)

	app.Get("/history", h.History)
	app.Delete("/history", h.ClearHistory)
}

// CreateAutomationRequest is the POST /automations payload.
type CreateAutomationRequest struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name" validate:"required"`
	Description string                  `json:"description"`
	Config      models.AutomationConfig `json:"config"`
}

// UpdateAutomationRequest is the PATCH /automations/:id payload; nil fields
// are left untouched.
type UpdateAutomationRequest struct {
	Name        *string                  `json:"name,omitempty"`
	Description *string                  `json:"description,omitempty"`
	Config      *models.AutomationConfig `json:"config,omitempty"`
	Enabled     *bool                    `json:"enabled,omitempty"`
}

// RunAutomationRequest optionally names the trigger to record for a manual run.
type RunAutomationRequest struct {
	Trigger *models.Trigger `json:"trigger,omitempty"`
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"automations": h.engine.GetAllAutomations()})
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.ID == "" {
		req.ID = "auto-" + uuid.New().String()[:8]
	}

	automation := &models.Automation{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
		Enabled:     req.Config.Enabled,
		Origin:      models.OriginManual,
	}

	if err := h.engine.RegisterAutomation(automation); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.engine.GetAutomation(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var req UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	automation, err := h.engine.UpdateAutomation(c.Params("id"), registry.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
		Enabled:     req.Enabled,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	h.engine.UnregisterAutomation(c.Params("id"))

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableAutomation(c fiber.Ctx) error {
	if err := h.engine.EnableAutomation(c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DisableAutomation(c fiber.Ctx) error {
	if err := h.engine.DisableAutomation(c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RunAutomation(c fiber.Ctx) error {
	var req RunAutomationRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	result, err := h.engine.RunAutomation(c.Context(), c.Params("id"), req.Trigger)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) AutomationHistory(c fiber.Ctx) error {
	entries := h.engine.GetHistoryForAutomation(c.Params("id"), parseLimit(c))

	return c.JSON(fiber.Map{"history": entries})
}

func (h *APIHandlers) History(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"history": h.engine.GetHistory(parseLimit(c))})
}

func (h *APIHandlers) ClearHistory(c fiber.Ctx) error {
	h.engine.ClearHistory()

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RunningAutomations(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"running": h.engine.GetRunningAutomationIDs()})
}

func parseLimit(c fiber.Ctx) int {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return 0
	}

	return limit
}
