package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/api/validators"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
	"github.com/felipe/zapgate/internal/service/media"
)

// MessageHandler expõe envio e consulta de mensagens
type MessageHandler struct {
	manager  *instance.Manager
	media    *media.Service
	messages repositories.MessageRepository
	logger   *logger.ComponentLogger
}

// NewMessageHandler cria um novo handler de mensagens
func NewMessageHandler(manager *instance.Manager, mediaService *media.Service, messages repositories.MessageRepository) *MessageHandler {
	return &MessageHandler{
		manager:  manager,
		media:    mediaService,
		messages: messages,
		logger:   logger.ForComponent("message_handler"),
	}
}

// SendText envia texto para um contato
func (h *MessageHandler) SendText(c *fiber.Ctx) error {
	req := validators.GetValidatedBody(c).(*dto.SendTextRequest)

	messageID, err := h.manager.SendText(c.Context(), c.Params("phone"), req.To, req.Message)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Message sent", fiber.Map{"message_id": messageID}))
}

// SendGroupText envia texto para um grupo
func (h *MessageHandler) SendGroupText(c *fiber.Ctx) error {
	req := validators.GetValidatedBody(c).(*dto.SendGroupTextRequest)

	messageID, err := h.manager.SendGroupText(c.Context(), c.Params("phone"), req.GroupID, req.Message)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Message sent", fiber.Map{"message_id": messageID}))
}

// SendMedia resolve o conteúdo (URL, data URL ou base64) e envia a mídia
func (h *MessageHandler) SendMedia(c *fiber.Ctx) error {
	req := validators.GetValidatedBody(c).(*dto.SendMediaRequest)

	resolved, err := h.media.Resolve(
		c.Context(),
		req.Media.Type,
		req.Media.URL,
		req.Media.MimeType,
		req.Media.Filename,
		req.Media.Caption,
	)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(dto.NewErrorResponse("BAD_INPUT", err.Error()))
	}

	messageID, err := h.manager.SendMedia(c.Context(), c.Params("phone"), req.To, *resolved)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Media sent", fiber.Map{"message_id": messageID}))
}

// List retorna as mensagens persistidas da instância, com filtros
func (h *MessageHandler) List(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	query := validators.GetValidatedQuery(c).(*dto.MessageListQuery)
	limit, offset := validators.GetValidatedPagination(c)

	filter := &models.MessageFilter{Limit: limit, Offset: offset}
	if query.Direction != "" {
		direction := models.MessageDirection(query.Direction)
		filter.Direction = &direction
	}
	if query.Type != "" {
		msgType := models.MessageType(query.Type)
		filter.Type = &msgType
	}
	if query.Status != "" {
		status := models.MessageStatus(query.Status)
		filter.Status = &status
	}

	messages, total, err := h.messages.GetByInstance(view.ID, filter)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewPaginationResponse("Messages retrieved", messages, limit, offset, total))
}

// Conversation retorna as mensagens trocadas com um contato
func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	limit, _ := validators.GetValidatedPagination(c)

	messages, err := h.messages.GetConversation(view.ID, c.Params("contact"), limit)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Conversation retrieved", messages))
}

// Statistics retorna agregados de mensagens da instância
func (h *MessageHandler) Statistics(c *fiber.Ctx) error {
	view, err := h.manager.GetView(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}

	stats, err := h.messages.GetStatistics(view.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(dto.NewSuccessResponse("Message statistics retrieved", stats))
}
