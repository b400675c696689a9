package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/service"
	"github.com/noah-isme/dossier-messaging-api/internal/utils"
)

// ThreadHandler exposes dossier threads and their messages.
type ThreadHandler struct {
	service service.MessagingService
	logger  zerolog.Logger
}

// NewThreadHandler constructs a thread handler.
func NewThreadHandler(service service.MessagingService, logger zerolog.Logger) *ThreadHandler {
	return &ThreadHandler{
		service: service,
		logger:  logger.With().Str("component", "thread_handler").Logger(),
	}
}

// Register binds thread and message routes. postGuards run before a message is posted.
func (h *ThreadHandler) Register(router fiber.Router, postGuards ...fiber.Handler) {
	router.Get("/threads", h.list)
	router.Post("/threads", h.create)
	router.Get("/threads/dossier/:ref", h.getByDossier)
	router.Put("/threads/dossier/:ref", h.upsertByDossier)
	router.Get("/threads/:id", h.get)
	router.Post("/threads/:id/read", h.markThreadRead)
	router.Post("/threads/:id/participants", h.addParticipant)

	post := append(append([]fiber.Handler{}, postGuards...), h.postMessage)
	router.Post("/threads/:id/messages", post...)

	router.Get("/messages/search", h.search)
	router.Post("/messages/:id/read", h.markMessageRead)
}

func (h *ThreadHandler) list(c *fiber.Ctx) error {
	ctx := requestContext(c)

	if parseQueryBool(c, "mine") {
		userID := userIDStringFromContext(c)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
		}
		threads, err := h.service.ThreadsForUser(ctx, userID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "threads retrieved", dto.NewThreadSummaryResponseSlice(threads))
	}

	threads, err := h.service.GetAllThreads(ctx)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "threads retrieved", dto.NewThreadSummaryResponseSlice(threads))
}

func (h *ThreadHandler) create(c *fiber.Ctx) error {
	var payload dto.ThreadCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	thread, err := h.service.CreateThread(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thread created", thread)
}

func (h *ThreadHandler) get(c *fiber.Ctx) error {
	thread, err := h.service.GetThreadByID(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "thread retrieved", thread)
}

func (h *ThreadHandler) getByDossier(c *fiber.Ctx) error {
	thread, err := h.service.GetThreadByDossierRef(requestContext(c), c.Params("ref"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "thread retrieved", thread)
}

func (h *ThreadHandler) upsertByDossier(c *fiber.Ctx) error {
	var payload dto.ThreadCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.DossierRef = c.Params("ref")

	thread, created, err := h.service.GetOrCreateThread(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	response := dto.ThreadUpsertResponse{Thread: thread, Created: created}
	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thread created", response)
	}
	return utils.SendSuccess(c, "thread retrieved", response)
}

func (h *ThreadHandler) addParticipant(c *fiber.Ctx) error {
	var payload dto.ParticipantAddRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(payload.UserID) == "" {
		return utils.SendErrorWithDetails(c, fiber.StatusUnprocessableEntity, "validation failed", map[string]string{"user_id": "required"})
	}

	thread, err := h.service.AddParticipant(requestContext(c), c.Params("id"), strings.TrimSpace(payload.UserID))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "participant added", thread)
}

func (h *ThreadHandler) postMessage(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.MessageCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := requestContext(c)
	threadID := c.Params("id")
	if payload.MentionIDs == nil && strings.Contains(payload.Content, "@") {
		mentions, err := h.service.ResolveMentions(ctx, threadID, payload.Content)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		payload.MentionIDs = mentions
	}

	message, err := h.service.AddMessage(ctx, threadID, userID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message posted", message)
}

func (h *ThreadHandler) markThreadRead(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	if err := h.service.MarkThreadAsRead(requestContext(c), c.Params("id"), userID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "thread marked as read", nil)
}

func (h *ThreadHandler) markMessageRead(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	if err := h.service.MarkMessageAsRead(requestContext(c), c.Params("id"), userID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message marked as read", nil)
}

func (h *ThreadHandler) search(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.SearchMessages(requestContext(c), c.Query("q"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "messages retrieved", paginate(messages, limit, 0))
}
