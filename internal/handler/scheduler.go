package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dispatcher"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/pkg/response"
)

// ManualTrigger runs one due item on demand; *dispatcher.Dispatcher satisfies it
type ManualTrigger interface {
	TriggerOne(ctx context.Context, moduleID, userID string) (*model.ItemResult, error)
}

type TriggerRequest struct {
	ModuleID string `query:"moduleId" validate:"required"`
	UserID   string `query:"userId" validate:"required"`
}

type SchedulerHandler struct {
	trigger   ManualTrigger
	validator *validator.Validate
}

func NewSchedulerHandler(trigger ManualTrigger, v *validator.Validate) *SchedulerHandler {
	return &SchedulerHandler{trigger: trigger, validator: v}
}

// Trigger handles POST /api/scheduler/trigger?moduleId=&userId=.
// The shared secret is checked by middleware before this runs.
func (h *SchedulerHandler) Trigger(c *fiber.Ctx) error {
	var req TriggerRequest
	if err := c.QueryParser(&req); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "moduleId and userId are required", formatValidationErrors(err))
	}

	result, err := h.trigger.TriggerOne(c.UserContext(), req.ModuleID, req.UserID)
	switch {
	case errors.Is(err, dispatcher.ErrModuleNotFound):
		return response.NotFound(c, "Unknown module")
	case errors.Is(err, dispatcher.ErrNoDueItem):
		return response.NotFound(c, "No due item for this user at the current time")
	case err != nil:
		return response.UpstreamError(c, err.Error())
	}
	return response.OK(c, result)
}
