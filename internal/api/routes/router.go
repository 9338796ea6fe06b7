package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/api/handlers"
	"github.com/felipe/zapgate/internal/api/middleware"
	"github.com/felipe/zapgate/internal/api/validators"
	"github.com/felipe/zapgate/internal/config"
)

// Router liga os handlers às rotas de acordo com o modo do gateway
type Router struct {
	app                  *fiber.App
	cfg                  *config.Config
	authMiddleware       *middleware.AuthMiddleware
	loggingMiddleware    *middleware.LoggingMiddleware
	validationMiddleware *validators.ValidationMiddleware
	instanceHandler      *handlers.InstanceHandler
	pluginHandler        *handlers.PluginHandler
	messageHandler       *handlers.MessageHandler
	webhookHandler       *handlers.WebhookHandler
	adminHandler         *handlers.AdminHandler
}

// RouterConfig agrupa as dependências do router
type RouterConfig struct {
	Config          *config.Config
	AuthMiddleware  *middleware.AuthMiddleware
	InstanceHandler *handlers.InstanceHandler
	PluginHandler   *handlers.PluginHandler
	MessageHandler  *handlers.MessageHandler
	WebhookHandler  *handlers.WebhookHandler
	AdminHandler    *handlers.AdminHandler
}

// NewRouter cria uma nova instância do router
func NewRouter(app *fiber.App, cfg *RouterConfig) *Router {
	return &Router{
		app:                  app,
		cfg:                  cfg.Config,
		authMiddleware:       cfg.AuthMiddleware,
		loggingMiddleware:    middleware.NewLoggingMiddleware(),
		validationMiddleware: validators.NewValidationMiddleware(),
		instanceHandler:      cfg.InstanceHandler,
		pluginHandler:        cfg.PluginHandler,
		messageHandler:       cfg.MessageHandler,
		webhookHandler:       cfg.WebhookHandler,
		adminHandler:         cfg.AdminHandler,
	}
}

// SetupRoutes configura as rotas conforme o modo (single, multi ou both).
// O modo single expõe só a superfície por instância; multi inclui a gestão
// de instâncias e a superfície administrativa.
func (r *Router) SetupRoutes() {
	r.setupGlobalMiddleware()
	r.setupPublicRoutes()

	mode := r.cfg.Server.Mode
	if mode == config.ModeMulti || mode == config.ModeBoth {
		r.setupManagementRoutes()
	}
	r.setupInstanceRoutes()
}

func (r *Router) setupGlobalMiddleware() {
	r.app.Use(r.authMiddleware.CORS())
	r.app.Use(r.loggingMiddleware.RequestLogger())
}

func (r *Router) setupPublicRoutes() {
	r.app.Get("/health", r.adminHandler.Health)

	r.app.Get("/swagger/*", swagger.New(swagger.Config{
		URL:          "doc.json",
		DeepLinking:  false,
		DocExpansion: "list",
	}))
	r.app.Get("/swagger", func(c *fiber.Ctx) error {
		return c.Redirect("/swagger/index.html", fiber.StatusMovedPermanently)
	})
}

// setupManagementRoutes expõe a superfície administrativa (chave admin).
// O middleware admin vai rota a rota: um Use no prefixo /instances também
// capturaria as rotas por instância.
func (r *Router) setupManagementRoutes() {
	requireAdmin := r.authMiddleware.RequireAdmin()

	// Gestão de instâncias
	r.app.Get("/instances",
		requireAdmin,
		r.validationMiddleware.ValidatePaginationParams(),
		r.instanceHandler.List,
	)
	r.app.Post("/instances",
		requireAdmin,
		r.validationMiddleware.ValidateJSON(&dto.CreateInstanceRequest{}),
		r.instanceHandler.Create,
	)
	r.app.Put("/instances/:phone",
		requireAdmin,
		r.validationMiddleware.ValidatePhoneParam(),
		r.validationMiddleware.ValidateJSON(&dto.UpdateInstanceRequest{}),
		r.instanceHandler.Update,
	)
	r.app.Delete("/instances/:phone",
		requireAdmin,
		r.validationMiddleware.ValidatePhoneParam(),
		r.instanceHandler.Delete,
	)

	// Histórico e agregados globais de webhooks
	webhooks := r.app.Group("/webhooks", requireAdmin)
	webhooks.Get("/history",
		r.validationMiddleware.ValidatePaginationParams(),
		r.validationMiddleware.ValidateQuery(&dto.WebhookHistoryQuery{}),
		r.webhookHandler.GlobalHistory,
	)
	webhooks.Get("/stats", r.webhookHandler.GlobalStatistics)

	// Operações administrativas
	admin := r.app.Group("/admin", requireAdmin)
	admin.Get("/status", r.adminHandler.Status)
	admin.Post("/retention/cleanup", r.adminHandler.RetentionCleanup)
}

// setupInstanceRoutes expõe a superfície por instância (chave admin ou da
// própria instância)
func (r *Router) setupInstanceRoutes() {
	instances := r.app.Group("/instances/:phone",
		r.authMiddleware.RequireInstanceKey(),
		r.validationMiddleware.ValidatePhoneParam(),
	)

	// Estado da instância
	instances.Get("/", r.instanceHandler.Get)
	instances.Post("/restart", r.instanceHandler.Restart)
	instances.Get("/connection", r.instanceHandler.Connection)
	instances.Get("/ping", r.instanceHandler.Ping)
	instances.Get("/logs",
		r.validationMiddleware.ValidatePaginationParams(),
		r.instanceHandler.Logs,
	)

	// Plugins
	instances.Get("/plugins", r.pluginHandler.Status)
	instances.Put("/plugins/:name/enable", r.pluginHandler.Enable)
	instances.Put("/plugins/:name/disable", r.pluginHandler.Disable)
	instances.Put("/plugins",
		r.validationMiddleware.ValidateJSON(&dto.PluginOverridesRequest{}),
		r.pluginHandler.SetOverrides,
	)
	instances.Post("/plugins/sync", r.pluginHandler.Sync)

	// Envio
	instances.Post("/send/text",
		r.validationMiddleware.ValidateJSON(&dto.SendTextRequest{}),
		r.messageHandler.SendText,
	)
	instances.Post("/send/group",
		r.validationMiddleware.ValidateJSON(&dto.SendGroupTextRequest{}),
		r.messageHandler.SendGroupText,
	)
	instances.Post("/send/media",
		r.validationMiddleware.ValidateJSON(&dto.SendMediaRequest{}),
		r.messageHandler.SendMedia,
	)

	// Consulta de mensagens
	instances.Get("/messages",
		r.validationMiddleware.ValidatePaginationParams(),
		r.validationMiddleware.ValidateQuery(&dto.MessageListQuery{}),
		r.messageHandler.List,
	)
	instances.Get("/messages/stats", r.messageHandler.Statistics)
	instances.Get("/chat/:contact",
		r.validationMiddleware.ValidatePaginationParams(),
		r.messageHandler.Conversation,
	)

	// Webhooks da instância
	instances.Get("/webhooks", r.webhookHandler.List)
	instances.Post("/webhooks",
		r.validationMiddleware.ValidateJSON(&dto.CreateWebhookRequest{}),
		r.webhookHandler.Create,
	)
	instances.Put("/webhooks/:webhookId",
		r.validationMiddleware.ValidateJSON(&dto.UpdateWebhookRequest{}),
		r.webhookHandler.Update,
	)
	instances.Delete("/webhooks/:webhookId", r.webhookHandler.Delete)
	instances.Get("/webhooks/history",
		r.validationMiddleware.ValidatePaginationParams(),
		r.validationMiddleware.ValidateQuery(&dto.WebhookHistoryQuery{}),
		r.webhookHandler.InstanceHistory,
	)
	instances.Get("/webhooks/stats", r.webhookHandler.InstanceStatistics)
}
