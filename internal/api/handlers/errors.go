package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/api/dto"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/service/instance"
)

// respondServiceError converte erros da camada de serviço no status HTTP e
// envelope correspondentes. Erros não mapeados vão para o log com o detalhe;
// o chamador recebe só a mensagem genérica.
func respondServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, instance.ErrInstanceNotFound), errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).
			JSON(dto.NewErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, instance.ErrInstanceAlreadyExists):
		return c.Status(fiber.StatusBadRequest).
			JSON(dto.NewErrorResponse("ALREADY_EXISTS", err.Error()))
	case errors.Is(err, instance.ErrBadInput):
		return c.Status(fiber.StatusBadRequest).
			JSON(dto.NewErrorResponse("BAD_INPUT", err.Error()))
	case errors.Is(err, instance.ErrNotConnected):
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(dto.NewErrorResponse("NOT_CONNECTED", err.Error()))
	default:
		logger.ForComponent("api_handlers").Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("Unhandled service error")
		return c.Status(fiber.StatusInternalServerError).
			JSON(dto.NewErrorResponse("INTERNAL_ERROR", "internal server error"))
	}
}
