package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
	"github.com/noah-isme/dossier-messaging-api/internal/service"
	"github.com/noah-isme/dossier-messaging-api/internal/utils"
)

// DirectoryHandler lists the users that can take part in dossier threads.
type DirectoryHandler struct {
	service service.MessagingService
	logger  zerolog.Logger
}

// NewDirectoryHandler constructs a directory handler.
func NewDirectoryHandler(service service.MessagingService, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.With().Str("component", "directory_handler").Logger(),
	}
}

// Register binds the directory routes.
func (h *DirectoryHandler) Register(router fiber.Router) {
	router.Get("/users", h.list)
	router.Get("/users/:id", h.get)
}

func (h *DirectoryHandler) list(c *fiber.Ctx) error {
	ctx := requestContext(c)

	if raw := strings.TrimSpace(c.Query("service")); raw != "" {
		svc := models.Service(strings.ToLower(raw))
		if !svc.Valid() {
			return utils.SendError(c, fiber.StatusBadRequest, "unknown service")
		}
		users, err := h.service.GetUsersByService(ctx, svc)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "users retrieved", users)
	}

	users, err := h.service.GetAvailableUsers(ctx)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "users retrieved", users)
}

func (h *DirectoryHandler) get(c *fiber.Ctx) error {
	user, err := h.service.GetUser(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user retrieved", user)
}
