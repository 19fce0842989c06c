package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yourorg/church-platform/services/chat-service/internal/apperrors"
	"github.com/yourorg/church-platform/services/chat-service/internal/models"
	"github.com/yourorg/church-platform/services/chat-service/internal/presence"
	"github.com/yourorg/church-platform/services/chat-service/internal/service"
)

// ChatHandler is the REST facade over the chat service, used for initial
// page hydration and by clients without a live socket.
type ChatHandler struct {
	svc         *service.ChatService
	tracker     *presence.Tracker
	development bool
	log         *zap.SugaredLogger
}

func NewChatHandler(svc *service.ChatService, tracker *presence.Tracker, development bool, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{svc: svc, tracker: tracker, development: development, log: log}
}

func (h *ChatHandler) ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

// fail renders the uniform error envelope; the underlying detail only leaks
// in development mode.
func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, "invalid request"
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		status, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	default:
		h.log.Errorw("chat handler", "path", c.Path(), "err", err)
	}

	body := fiber.Map{"success": false, "message": message}
	if h.development {
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// GetConversations lists the caller's conversation index.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	convs, err := h.svc.Conversations(c.Context(), currentUserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, fiber.Map{"conversations": convs})
}

// GetMessages returns one chronological page of the thread with a counterpart.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	page := int64(c.QueryInt("page", 1))
	limit := int64(c.QueryInt("limit", 0))

	msgs, pagination, err := h.svc.History(c.Context(), currentUserID(c), c.Params("counterpartId"), page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return h.ok(c, fiber.Map{"messages": msgs, "pagination": pagination})
}

// SendMessage persists a message over REST; the admin dashboard uses this as
// its test-send, and it is the fallback for clients without a socket.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Message    string             `json:"message"`
		Attachment *models.Attachment `json:"attachment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperrors.ErrValidation)
	}
	m, err := h.svc.SendMessage(c.Context(), currentUserID(c), c.Params("counterpartId"), req.Message, req.Attachment)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": fiber.Map{"message": m}})
}

// MarkRead flips unread messages from the counterpart and reports the count.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	n, err := h.svc.MarkRead(c.Context(), currentUserID(c), c.Params("counterpartId"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, fiber.Map{"updatedCount": n})
}

// GetStats serves the admin dashboard summary.
func (h *ChatHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.svc.Stats(c.Context(), h.tracker.OnlineCount())
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, stats)
}

// DeleteMessage hard-deletes a single message, admin only.
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.svc.DeleteMessage(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, fiber.Map{"deleted": true})
}
