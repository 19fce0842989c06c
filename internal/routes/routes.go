package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/church-platform/services/chat-service/internal/auth"
	"github.com/yourorg/church-platform/services/chat-service/internal/handlers"
	"github.com/yourorg/church-platform/services/chat-service/internal/middleware"
	"github.com/yourorg/church-platform/services/chat-service/internal/ws"
)

func Register(app *fiber.App, h *handlers.ChatHandler, gateway *ws.Gateway, verifier *auth.Verifier) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	chat := api.Group("/chat")
	chat.Use(middleware.JWTAuth(verifier))
	chat.Get("/conversations", h.GetConversations)
	chat.Get("/messages/:counterpartId", h.GetMessages)
	chat.Post("/messages/:counterpartId", h.SendMessage)
	chat.Post("/messages/:counterpartId/read", h.MarkRead)
	chat.Get("/stats", middleware.AdminOnly(), h.GetStats)
	chat.Delete("/messages/:id", middleware.AdminOnly(), h.DeleteMessage)

	// ws auth happens inside the gateway from ?token=
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(gateway.Handle()))
}
