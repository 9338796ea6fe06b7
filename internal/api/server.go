package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/felipe/zapgate/internal/api/handlers"
	"github.com/felipe/zapgate/internal/api/middleware"
	"github.com/felipe/zapgate/internal/api/routes"
	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
	"github.com/felipe/zapgate/internal/service/media"
	"github.com/felipe/zapgate/internal/service/retention"
	"github.com/felipe/zapgate/internal/service/webhook"
)

// Server representa o servidor HTTP do gateway
type Server struct {
	app    *fiber.App
	config *config.Config
	router *routes.Router
	logger *logger.ComponentLogger
}

// Deps agrupa os serviços e repositórios que a API consome
type Deps struct {
	Manager    *instance.Manager
	Media      *media.Service
	Dispatcher *webhook.Dispatcher
	Retention  *retention.Service
	Database   handlers.HealthChecker
	Instances  repositories.InstanceRepository
	Messages   repositories.MessageRepository
	Webhooks   repositories.WebhookRepository
	History    repositories.WebhookHistoryRepository
	Logs       repositories.InstanceLogRepository
}

// NewServer cria o servidor HTTP com todas as rotas configuradas
func NewServer(cfg *config.Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "ZapGate API",
		ServerHeader: "ZapGate/1.0",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   "INTERNAL_ERROR",
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())

	router := routes.NewRouter(app, &routes.RouterConfig{
		Config:          cfg,
		AuthMiddleware:  middleware.NewAuthMiddleware(cfg.Auth.AdminAPIKey, deps.Instances),
		InstanceHandler: handlers.NewInstanceHandler(deps.Manager, deps.Logs),
		PluginHandler:   handlers.NewPluginHandler(deps.Manager),
		MessageHandler:  handlers.NewMessageHandler(deps.Manager, deps.Media, deps.Messages),
		WebhookHandler:  handlers.NewWebhookHandler(deps.Manager, deps.Webhooks, deps.History),
		AdminHandler:    handlers.NewAdminHandler(deps.Manager, deps.Dispatcher, deps.Retention, deps.Database),
	})
	router.SetupRoutes()

	return &Server{
		app:    app,
		config: cfg,
		router: router,
		logger: logger.ForComponent("api_server"),
	}
}

// Start inicia o servidor HTTP (bloqueante)
func (s *Server) Start() error {
	address := s.config.GetServerAddress()

	s.logger.Info().
		Str("address", address).
		Str("mode", s.config.Server.Mode).
		Msg("Starting HTTP server")

	return s.app.Listen(address)
}

// Stop encerra o servidor HTTP
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping HTTP server")
	return s.app.Shutdown()
}

// App retorna a instância do Fiber para testes
func (s *Server) App() *fiber.App {
	return s.app
}
