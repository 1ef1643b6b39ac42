package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/auth"
)

// AuthHandler answers ForwardAuth checks from the reverse proxy
type AuthHandler struct {
	verifier auth.TokenVerifier
}

func NewAuthHandler(verifier auth.TokenVerifier) *AuthHandler {
	return &AuthHandler{verifier: verifier}
}

// Verify handles GET /auth/verify.
// Returns 200 with X-User-* headers on success, 401 otherwise.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || h.verifier == nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := h.verifier.Validate(parts[1])
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	c.Set("X-User-Id", id.UserID)
	c.Set("X-User-Email", id.Email)
	c.Set("X-User-Name", id.Name)
	return c.SendStatus(fiber.StatusOK)
}
