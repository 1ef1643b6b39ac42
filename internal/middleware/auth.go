package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/auth"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/pkg/response"
)

// AuthMiddleware validates bearer tokens on the dashboard-facing API
type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate validates the JWT from the Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		if m.verifier == nil {
			return response.Unauthorized(c, "Authentication not configured")
		}
		id, err := m.verifier.Validate(parts[1])
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals("userId", id.UserID)
		c.Locals("email", id.Email)
		c.Locals("name", id.Name)
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// SecretMatches compares a presented token with the shared secret in
// constant time. An empty secret matches nothing.
func SecretMatches(secret, presented string) bool {
	if secret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) == 1
}

// SharedSecret guards machine-to-machine endpoints. The token is read from
// the X-Auth-Token header or the authToken query parameter, and a mismatch is
// rejected before the handler runs.
func SharedSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Auth-Token")
		if token == "" {
			token = c.Query("authToken")
		}
		if !SecretMatches(secret, token) {
			return response.Unauthorized(c, "Invalid auth token")
		}
		return c.Next()
	}
}
