package handler

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/client"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/middleware"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/registry"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/pkg/response"
)

// PublishRequest is the part of the publish body the endpoint acts on;
// the rest of the payload is accepted and ignored.
type PublishRequest struct {
	MediaURL   string `validate:"required,url"`
	AccountRef string `validate:"required"`
	Caption    string `validate:"max=2200"`
	IsVideo    bool
}

// PublishHandler serves POST /publish/:moduleId, the endpoint the executor
// publishes to. It posts the media to the social account.
type PublishHandler struct {
	secret    string
	modules   *registry.Registry
	poster    client.SocialPoster
	validator *validator.Validate
	log       zerolog.Logger
}

func NewPublishHandler(secret string, modules *registry.Registry, poster client.SocialPoster, v *validator.Validate, log zerolog.Logger) *PublishHandler {
	return &PublishHandler{secret: secret, modules: modules, poster: poster, validator: v, log: log}
}

func (h *PublishHandler) Publish(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return response.PublishFailed(c, fiber.StatusBadRequest, "Invalid request body")
	}

	// Authenticate before doing anything else
	if !middleware.SecretMatches(h.secret, stringField(body, "authToken")) {
		return response.PublishFailed(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	moduleID := c.Params("moduleId")
	if _, ok := h.modules.Get(moduleID); !ok {
		return response.PublishFailed(c, fiber.StatusNotFound, "Unknown module")
	}

	req := PublishRequest{
		MediaURL:   stringField(body, "mediaUrl"),
		AccountRef: stringField(body, "accountRef"),
		Caption:    stringField(body, "caption"),
	}
	req.IsVideo, _ = strconv.ParseBool(stringField(body, "isVideo"))
	if err := h.validator.Struct(&req); err != nil {
		return response.PublishFailed(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", formatValidationErrors(err)))
	}

	postID, err := h.poster.Post(c.UserContext(), &client.PostRequest{
		AccountRef: req.AccountRef,
		MediaURL:   req.MediaURL,
		Caption:    req.Caption,
		IsVideo:    req.IsVideo,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("module", moduleID).Str("account", req.AccountRef).Msg("publish failed")
		return response.PublishFailed(c, fiber.StatusBadGateway, err.Error())
	}

	h.log.Info().Str("module", moduleID).Str("account", req.AccountRef).Str("post_id", postID).Msg("published")
	return response.PublishOK(c, postID)
}

// stringField reads a JSON value as a string; booleans and numbers are formatted
func stringField(body map[string]interface{}, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
