package server

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yourorg/church-platform/services/chat-service/internal/config"
	"github.com/yourorg/church-platform/services/chat-service/internal/middleware"
)

func New(cfg *config.Config, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "chat-service",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	app.Use(middleware.Recovery(log))
	app.Use(middleware.RequestLogger(log))
	return app
}
