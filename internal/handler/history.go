package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/middleware"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/pkg/response"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultSummarySpan  = 24 * time.Hour
)

// HistoryReader is the read side of the outcome logger
type HistoryReader interface {
	Recent(ctx context.Context, scope model.Scope, limit int) ([]model.RunLogEntry, error)
	Summarize(ctx context.Context, userID, runID string, from, to time.Time) (*model.RunSummary, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/history?accountRef=&limit= for the calling user
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	accountRef := c.Query("accountRef")
	if accountRef == "" {
		return response.ValidationError(c, "accountRef is required", nil)
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	scope := model.Scope{UserID: middleware.GetUserID(c), AccountRef: accountRef}
	entries, err := h.history.Recent(c.UserContext(), scope, limit)
	if err != nil {
		return response.ServiceError(c, "Failed to load history")
	}
	if entries == nil {
		entries = []model.RunLogEntry{}
	}
	return response.OK(c, fiber.Map{"entries": entries})
}

// Run handles GET /api/runs/:runId?from=&to= (RFC 3339, default last 24h).
// Only the caller's entries of the run are counted.
func (h *HistoryHandler) Run(c *fiber.Ctx) error {
	to := time.Now()
	from := to.Add(-defaultSummarySpan)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return response.ValidationError(c, "from must be RFC 3339", nil)
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return response.ValidationError(c, "to must be RFC 3339", nil)
		}
		to = t
	}
	if !from.Before(to) {
		return response.ValidationError(c, "from must be before to", nil)
	}

	sum, err := h.history.Summarize(c.UserContext(), middleware.GetUserID(c), c.Params("runId"), from, to)
	if err != nil {
		return response.ServiceError(c, "Failed to summarize run")
	}
	if sum.Total == 0 {
		return response.NotFound(c, "No entries for this run in range")
	}
	return response.OK(c, sum)
}
