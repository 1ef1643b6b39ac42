package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/middleware"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/module"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/registry"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/pkg/response"
)

// ScheduleRequest is the body of PUT /api/schedules/:moduleId/:itemId
type ScheduleRequest struct {
	DisplayName  string            `json:"displayName"`
	AccountRef   string            `json:"accountRef" validate:"required"`
	PostingTimes []string          `json:"postingTimes" validate:"required,min=1,max=48,dive,hhmm"`
	Enabled      bool              `json:"enabled"`
	Category     string            `json:"category"`
	Style        string            `json:"style"`
	Topic        string            `json:"topic"`
	Prompt       string            `json:"prompt"`
	Hashtags     []string          `json:"hashtags" validate:"max=30"`
	Extra        map[string]string `json:"extra"`
}

type ScheduleHandler struct {
	store     module.ScheduleStore
	modules   *registry.Registry
	validator *validator.Validate
}

func NewScheduleHandler(store module.ScheduleStore, modules *registry.Registry, v *validator.Validate) *ScheduleHandler {
	return &ScheduleHandler{store: store, modules: modules, validator: v}
}

// List handles GET /api/schedules/:moduleId, returning the caller's schedules
func (h *ScheduleHandler) List(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if _, ok := h.modules.Get(moduleID); !ok {
		return response.NotFound(c, "Unknown module")
	}

	all, err := h.store.List(c.UserContext(), moduleID)
	if err != nil {
		return response.ServiceError(c, "Failed to load schedules")
	}
	userID := middleware.GetUserID(c)
	mine := make([]model.Schedule, 0, len(all))
	for _, s := range all {
		if s.UserID == userID {
			mine = append(mine, s)
		}
	}
	return response.OK(c, fiber.Map{"schedules": mine})
}

// Put handles PUT /api/schedules/:moduleId/:itemId
func (h *ScheduleHandler) Put(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if _, ok := h.modules.Get(moduleID); !ok {
		return response.NotFound(c, "Unknown module")
	}

	var req ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	itemID := c.Params("itemId")

	existing, err := h.store.List(c.UserContext(), moduleID)
	if err != nil {
		return response.ServiceError(c, "Failed to load schedules")
	}
	for _, s := range existing {
		if s.ID == itemID && s.UserID != userID {
			return response.NotFound(c, "Schedule not found")
		}
	}

	sch := &model.Schedule{
		ID:           itemID,
		UserID:       userID,
		DisplayName:  req.DisplayName,
		AccountRef:   req.AccountRef,
		PostingTimes: req.PostingTimes,
		Enabled:      req.Enabled,
		Category:     req.Category,
		Style:        req.Style,
		Topic:        req.Topic,
		Prompt:       req.Prompt,
		Hashtags:     req.Hashtags,
		Extra:        req.Extra,
	}
	if err := h.store.Put(c.UserContext(), moduleID, sch); err != nil {
		return response.ServiceError(c, "Failed to save schedule")
	}
	return response.OK(c, sch)
}
