package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
	"github.com/felipe/zapgate/internal/service/retention"
	"github.com/felipe/zapgate/internal/service/webhook"
)

// HealthChecker reporta a saúde do armazenamento
type HealthChecker interface {
	Health() error
}

// AdminHandler expõe operações administrativas do gateway
type AdminHandler struct {
	manager    *instance.Manager
	dispatcher *webhook.Dispatcher
	retention  *retention.Service
	database   HealthChecker
	logger     *logger.ComponentLogger
}

// NewAdminHandler cria um novo handler administrativo
func NewAdminHandler(
	manager *instance.Manager,
	dispatcher *webhook.Dispatcher,
	retentionService *retention.Service,
	database HealthChecker,
) *AdminHandler {
	return &AdminHandler{
		manager:    manager,
		dispatcher: dispatcher,
		retention:  retentionService,
		database:   database,
		logger:     logger.ForComponent("admin_handler"),
	}
}

// Health verifica a saúde do serviço e do banco
func (h *AdminHandler) Health(c *fiber.Ctx) error {
	if err := h.database.Health(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "zapgate-api",
	})
}

// Status retorna o estado do gerenciador e do despachante de webhooks
func (h *AdminHandler) Status(c *fiber.Ctx) error {
	status := h.manager.Status()

	return c.JSON(dto.NewSuccessResponse("Gateway status retrieved", fiber.Map{
		"manager":             status,
		"webhook_queue_depth": h.dispatcher.QueueDepth(),
	}))
}

// RetentionCleanup dispara uma varredura de retenção imediata
func (h *AdminHandler) RetentionCleanup(c *fiber.Ctx) error {
	result := h.retention.Sweep(c.Context())

	h.logger.Info().
		Strs("instances_purged", result.InstancesPurged).
		Msg("Manual retention sweep triggered")

	return c.JSON(dto.NewSuccessResponse("Retention sweep completed", result))
}
