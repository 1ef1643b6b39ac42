package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports which collaborators are configured with real backends
type HealthHandler struct {
	services map[string]bool
	modules  []string
}

func NewHealthHandler(services map[string]bool, modules []string) *HealthHandler {
	return &HealthHandler{services: services, modules: modules}
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"services": h.services,
		"modules":  h.modules,
	})
}
