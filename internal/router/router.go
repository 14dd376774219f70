package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/vibely-go-api/internal/config"
	"github.com/noah-isme/vibely-go-api/internal/handler"
	"github.com/noah-isme/vibely-go-api/internal/middleware"
	"github.com/noah-isme/vibely-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler        *handler.AuthHandler
	UserHandler        *handler.UserHandler
	ChatHandler        *handler.ChatHandler
	MessageHandler     *handler.MessageHandler
	ChatRequestHandler *handler.ChatRequestHandler
	RealtimeHandler    *handler.RealtimeHandler
	CompanionHandler   *handler.CompanionHandler
	AuthMiddleware     fiber.Handler
	HealthProbes       map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	api.Get("/metrics", observability.MetricsHandler())

	authMiddleware := deps.AuthMiddleware
	if authMiddleware == nil {
		authMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	public := api.Group("/auth", middleware.RateLimit("signup", 5, time.Minute))
	protected := api.Group("", authMiddleware)

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(public, protected.Group("/auth"))
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(protected)
	}

	chats := protected.Group("/chats", middleware.RateLimit("chats", 30, 10*time.Second))
	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(chats)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(chats)
	}

	if deps.ChatRequestHandler != nil {
		requests := protected.Group("/chat-requests", middleware.RateLimit("chat-requests", 20, time.Minute))
		deps.ChatRequestHandler.Register(requests)
	}

	if deps.CompanionHandler != nil {
		companions := protected.Group("/companions", middleware.RateLimit("companions", 10, time.Minute))
		deps.CompanionHandler.Register(companions)
	}

	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(protected.Group("/realtime"))
	}
}
