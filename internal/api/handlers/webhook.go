package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/api/validators"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
)

// WebhookHandler expõe as inscrições de webhook e o histórico de entregas
type WebhookHandler struct {
	manager   *instance.Manager
	webhooks  repositories.WebhookRepository
	history   repositories.WebhookHistoryRepository
	validator *validators.Validator
	logger    *logger.ComponentLogger
}

// NewWebhookHandler cria um novo handler de webhooks
func NewWebhookHandler(
	manager *instance.Manager,
	webhooks repositories.WebhookRepository,
	history repositories.WebhookHistoryRepository,
) *WebhookHandler {
	return &WebhookHandler{
		manager:   manager,
		webhooks:  webhooks,
		history:   history,
		validator: validators.NewValidator(),
		logger:    logger.ForComponent("webhook_handler"),
	}
}

// List retorna as inscrições da instância
func (h *WebhookHandler) List(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	hooks, err := h.webhooks.GetByInstance(view.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Webhooks retrieved", hooks))
}

// Create inscreve uma URL num evento da instância
func (h *WebhookHandler) Create(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	req := validators.GetValidatedBody(c).(*dto.CreateWebhookRequest)

	hook := &models.Webhook{
		InstanceID: view.ID,
		Event:      req.Event,
		URL:        req.URL,
		Enabled:    true,
	}
	if req.Enabled != nil {
		hook.Enabled = *req.Enabled
	}

	if err := h.webhooks.Create(hook); err != nil {
		return respondServiceError(c, err)
	}

	h.logger.Info().
		Str("instance", view.Phone).
		Str("event", hook.Event).
		Str("webhook_id", hook.ID).
		Msg("Webhook subscription created")

	return c.Status(fiber.StatusCreated).JSON(dto.NewSuccessResponse("Webhook created", hook))
}

// Update altera uma inscrição da instância
func (h *WebhookHandler) Update(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	hook, err := h.webhooks.GetByID(c.Params("webhookId"))
	if err != nil {
		return respondServiceError(c, err)
	}
	if hook.InstanceID != view.ID {
		return c.Status(fiber.StatusNotFound).
			JSON(dto.NewErrorResponse("NOT_FOUND", "webhook does not belong to this instance"))
	}

	req := validators.GetValidatedBody(c).(*dto.UpdateWebhookRequest)
	if req.Event != nil {
		hook.Event = *req.Event
	}
	if req.URL != nil {
		hook.URL = *req.URL
	}
	if req.Enabled != nil {
		hook.Enabled = *req.Enabled
	}

	if err := h.webhooks.Update(hook); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Webhook updated", hook))
}

// Delete remove uma inscrição da instância
func (h *WebhookHandler) Delete(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	hook, err := h.webhooks.GetByID(c.Params("webhookId"))
	if err != nil {
		return respondServiceError(c, err)
	}
	if hook.InstanceID != view.ID {
		return c.Status(fiber.StatusNotFound).
			JSON(dto.NewErrorResponse("NOT_FOUND", "webhook does not belong to this instance"))
	}

	if err := h.webhooks.Delete(hook.ID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Webhook deleted", nil))
}

// InstanceHistory retorna o histórico de entregas da instância
func (h *WebhookHandler) InstanceHistory(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return h.queryHistory(c, &view.ID)
}

// GlobalHistory retorna o histórico de entregas de todas as instâncias
func (h *WebhookHandler) GlobalHistory(c *fiber.Ctx) error {
	return h.queryHistory(c, nil)
}

func (h *WebhookHandler) queryHistory(c *fiber.Ctx, instanceID *string) error {
	query := validators.GetValidatedQuery(c).(*dto.WebhookHistoryQuery)
	limit, offset := validators.GetValidatedPagination(c)

	dateFrom, dateTo, err := h.validator.ValidateDateRange(query.DateFrom, query.DateTo)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(dto.NewErrorResponse("BAD_INPUT", err.Error()))
	}

	filter := &models.WebhookHistoryFilter{
		InstanceID: instanceID,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Limit:      limit,
		Offset:     offset,
	}
	if query.Status != "" {
		status := models.WebhookHistoryStatus(query.Status)
		filter.Status = &status
	}
	if query.Event != "" {
		filter.Event = &query.Event
	}
	if query.WebhookID != "" {
		filter.WebhookID = &query.WebhookID
	}

	records, total, err := h.history.GetAll(filter)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewPaginationResponse("Webhook history retrieved", records, limit, offset, total))
}

// InstanceStatistics retorna agregados das entregas da instância
func (h *WebhookHandler) InstanceStatistics(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	stats, err := h.history.GetStatistics(&view.ID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Webhook statistics retrieved", stats))
}

// GlobalStatistics retorna agregados das entregas de todas as instâncias
func (h *WebhookHandler) GlobalStatistics(c *fiber.Ctx) error {
	stats, err := h.history.GetStatistics(nil)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Webhook statistics retrieved", stats))
}
