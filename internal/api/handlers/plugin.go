package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/api/validators"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
)

// PluginHandler expõe a cadeia de plugins por instância
type PluginHandler struct {
	manager *instance.Manager
	logger  *logger.ComponentLogger
}

// NewPluginHandler cria um novo handler de plugins
func NewPluginHandler(manager *instance.Manager) *PluginHandler {
	return &PluginHandler{
		manager: manager,
		logger:  logger.ForComponent("plugin_handler"),
	}
}

// Status lista os plugins registrados e o estado deles na instância
func (h *PluginHandler) Status(c *fiber.Ctx) error {
	inst, err := h.manager.Get(c.Params("phone"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Plugin status retrieved", inst.Chain().Status()))
}

// Enable habilita um plugin na instância
func (h *PluginHandler) Enable(c *fiber.Ctx) error {
	return h.toggle(c, true)
}

// Disable desabilita um plugin na instância
func (h *PluginHandler) Disable(c *fiber.Ctx) error {
	return h.toggle(c, false)
}

func (h *PluginHandler) toggle(c *fiber.Ctx, enabled bool) error {
	phone := c.Params("phone")
	name := c.Params("name")

	inst, err := h.manager.Get(phone)
	if err != nil {
		return respondServiceError(c, err)
	}

	var known bool
	if enabled {
		known = inst.Chain().Enable(name)
	} else {
		known = inst.Chain().Disable(name)
	}
	if !known {
		return c.Status(fiber.StatusNotFound).
			JSON(dto.NewErrorResponse("UNKNOWN_PLUGIN", "plugin "+name+" is not registered"))
	}

	if err := h.manager.SetPluginOverrides(phone, map[string]bool{name: enabled}); err != nil {
		return respondServiceError(c, err)
	}

	h.logger.Info().
		Str("instance", phone).
		Str("plugin", name).
		Bool("enabled", enabled).
		Msg("Plugin toggled")

	return c.JSON(dto.NewSuccessResponse("Plugin updated", inst.Chain().Status()))
}

// SetOverrides aplica um mapa parcial de overrides de uma vez
func (h *PluginHandler) SetOverrides(c *fiber.Ctx) error {
	req := validators.GetValidatedBody(c).(*dto.PluginOverridesRequest)

	phone := c.Params("phone")
	if err := h.manager.SetPluginOverrides(phone, req.Plugins); err != nil {
		return respondServiceError(c, err)
	}

	inst, err := h.manager.Get(phone)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Plugin overrides applied", inst.Chain().Status()))
}

// Sync recarrega os overrides persistidos para a cadeia em memória
func (h *PluginHandler) Sync(c *fiber.Ctx) error {
	phone := c.Params("phone")
	if err := h.manager.SyncPluginOverrides(phone); err != nil {
		return respondServiceError(c, err)
	}

	inst, err := h.manager.Get(phone)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dto.NewSuccessResponse("Plugin overrides synchronised", inst.Chain().Status()))
}
