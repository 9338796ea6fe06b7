package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/transport"
)

// AuthContext representa o contexto de autenticação da requisição
type AuthContext struct {
	APIKey  string
	IsAdmin bool
	Phone   string
}

// AuthMiddleware gerencia autenticação por API key: a chave admin dá acesso
// total, a chave gerada de cada instância dá acesso ao escopo dela
type AuthMiddleware struct {
	adminAPIKey string
	instances   repositories.InstanceRepository
	logger      *logger.ComponentLogger
}

// NewAuthMiddleware cria um novo middleware de autenticação
func NewAuthMiddleware(adminAPIKey string, instances repositories.InstanceRepository) *AuthMiddleware {
	return &AuthMiddleware{
		adminAPIKey: adminAPIKey,
		instances:   instances,
		logger:      logger.ForComponent("auth_middleware"),
	}
}

// GetAuthContext extrai o contexto de autenticação do Fiber context
func GetAuthContext(c *fiber.Ctx) *AuthContext {
	if ctx := c.Locals("auth"); ctx != nil {
		return ctx.(*AuthContext)
	}
	return nil
}

// extractAPIKey extrai a API key dos headers
func (am *AuthMiddleware) extractAPIKey(c *fiber.Ctx) string {
	if apiKey := c.Get("apikey"); apiKey != "" {
		return apiKey
	}

	if apiKey := c.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	token := c.Get("Authorization")
	if token != "" {
		return strings.TrimPrefix(token, "Bearer ")
	}

	return ""
}

// RequireAdmin exige a chave admin
func (am *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := am.extractAPIKey(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "MISSING_API_KEY",
				"message": "API key is required in 'apikey', 'X-API-Key' or 'Authorization' header",
			})
		}

		if apiKey != am.adminAPIKey {
			am.logger.Warn().Str("path", c.Path()).Msg("Admin access denied")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "ADMIN_ACCESS_REQUIRED",
				"message": "Admin API key required",
			})
		}

		c.Locals("auth", &AuthContext{APIKey: apiKey, IsAdmin: true})
		return c.Next()
	}
}

// RequireInstanceKey aceita a chave admin ou a chave da instância referida
// pelo parâmetro :phone da rota
func (am *AuthMiddleware) RequireInstanceKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := am.extractAPIKey(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "MISSING_API_KEY",
				"message": "API key is required in 'apikey', 'X-API-Key' or 'Authorization' header",
			})
		}

		if apiKey == am.adminAPIKey {
			c.Locals("auth", &AuthContext{APIKey: apiKey, IsAdmin: true})
			return c.Next()
		}

		record, err := am.instances.GetByAPIKey(apiKey)
		if err != nil {
			am.logger.Warn().Str("path", c.Path()).Msg("Instance API key validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "INVALID_API_KEY",
				"message": "Invalid API key provided",
			})
		}

		if phone := c.Params("phone"); phone != "" {
			if transport.NormalizePhone(phone) != record.Phone {
				am.logger.Warn().
					Str("authenticated_instance", record.Phone).
					Str("requested_instance", phone).
					Msg("Instance access denied")
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"success": false,
					"error":   "INSTANCE_ACCESS_DENIED",
					"message": "Access denied to this instance",
				})
			}
		}

		c.Locals("auth", &AuthContext{APIKey: apiKey, Phone: record.Phone})
		return c.Next()
	}
}

// CORS middleware com suporte aos headers de API key
func (am *AuthMiddleware) CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key,apikey",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: false,
		MaxAge:           86400,
	})
}
