package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/api/validators"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
)

// InstanceHandler expõe o ciclo de vida das instâncias do gateway
type InstanceHandler struct {
	manager *instance.Manager
	logs    repositories.InstanceLogRepository
	logger  *logger.ComponentLogger
}

// NewInstanceHandler cria um novo handler de instâncias
func NewInstanceHandler(manager *instance.Manager, logs repositories.InstanceLogRepository) *InstanceHandler {
	return &InstanceHandler{
		manager: manager,
		logs:    logs,
		logger:  logger.ForComponent("instance_handler"),
	}
}

// List retorna a visão de todas as instâncias supervisionadas
func (h *InstanceHandler) List(c *fiber.Ctx) error {
	limit, offset := validators.GetValidatedPagination(c)

	snapshots := h.manager.List()
	total := len(snapshots)

	if offset >= total {
		snapshots = snapshots[:0]
	} else {
		end := offset + limit
		if end > total {
			end = total
		}
		snapshots = snapshots[offset:end]
	}

	return c.JSON(dto.NewPaginationResponse("Instances retrieved", snapshots, limit, offset, total))
}

// Create registra uma nova instância e dispara a primeira conexão
func (h *InstanceHandler) Create(c *fiber.Ctx) error {
	req := validators.GetValidatedBody(c).(*dto.CreateInstanceRequest)

	inst, err := h.manager.Create(req.Phone, req.Name, req.Alias)
	if err != nil {
		return respondServiceError(c, err)
	}

	h.logger.Info().Str("instance", inst.Phone()).Msg("Instance created")

	snapshot := inst.Snapshot()
	return c.Status(fiber.StatusCreated).JSON(dto.NewSuccessResponse("Instance created", fiber.Map{
		"instance": snapshot,
		"api_key":  inst.APIKey(),
	}))
}

// Get retorna a visão de uma instância (degradada quando fora de memória)
func (h *InstanceHandler) Get(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Instance retrieved", view))
}

// Update altera nome e alias da instância
func (h *InstanceHandler) Update(c *fiber.Ctx) error {
	req := validators.GetValidatedBody(c).(*dto.UpdateInstanceRequest)

	view, err := h.manager.Update(c.Params("phone"), req.Name, req.Alias)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Instance updated", view))
}

// Delete desliga e remove a instância; keepRecord preserva a linha no store
func (h *InstanceHandler) Delete(c *fiber.Ctx) error {
	keepRecord := c.QueryBool("keepRecord", false)

	if err := h.manager.Delete(c.Params("phone"), keepRecord); err != nil {
		return respondServiceError(c, err)
	}

	h.logger.Info().Str("instance", c.Params("phone")).Bool("keep_record", keepRecord).Msg("Instance deleted")
	return c.JSON(dto.NewSuccessResponse("Instance deleted", nil))
}

// Restart força a reconexão da instância preservando as credenciais
func (h *InstanceHandler) Restart(c *fiber.Ctx) error {
	if err := h.manager.Restart(c.Params("phone")); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Instance restarting", nil))
}

// Connection retorna o estado de conexão corrente, com o QR em base64
// enquanto a instância aguarda pareamento
func (h *InstanceHandler) Connection(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Connection state retrieved", fiber.Map{
		"status":             view.Status,
		"connected":          view.Connected,
		"jid":                view.JID,
		"qr_code":            view.QRCode,
		"reconnect_attempts": view.ReconnectAttempts,
	}))
}

// Ping responde se a instância está conectada
func (h *InstanceHandler) Ping(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Pong", fiber.Map{
		"connected": view.Connected,
		"status":    view.Status,
	}))
}

// Logs retorna o log operacional append-only da instância
func (h *InstanceHandler) Logs(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	limit, offset := validators.GetValidatedPagination(c)

	entries, err := h.logs.GetByInstance(view.ID, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewPaginationResponse("Instance logs retrieved", entries, limit, offset, len(entries)))
}
