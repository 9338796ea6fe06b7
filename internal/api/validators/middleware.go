package validators

import (
	"reflect"

	"github.com/gofiber/fiber/v2"
)

type ValidationMiddleware struct {
	validator *Validator
}

func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: NewValidator(),
	}
}

// ValidateJSON valida o corpo contra o DTO dado. Cada requisição recebe uma
// alocação nova; reutilizar o protótipo vazaria campos entre requisições.
func (vm *ValidationMiddleware) ValidateJSON(structType interface{}) fiber.Handler {
	prototype := reflect.TypeOf(structType).Elem()
	return func(c *fiber.Ctx) error {
		obj := reflect.New(prototype).Interface()

		if err := vm.validator.ValidateAndBindJSON(c, obj); err != nil {
			if validationErr, ok := err.(*ValidationErrorResponse); ok {
				return c.Status(validationErr.Status).JSON(validationErr)
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "VALIDATION_ERROR",
				"message": err.Error(),
			})
		}

		c.Locals("validated_body", obj)
		return c.Next()
	}
}

// ValidateQuery valida a query string contra o DTO dado, também com uma
// alocação por requisição
func (vm *ValidationMiddleware) ValidateQuery(structType interface{}) fiber.Handler {
	prototype := reflect.TypeOf(structType).Elem()
	return func(c *fiber.Ctx) error {
		obj := reflect.New(prototype).Interface()

		if err := vm.validator.ValidateQuery(c, obj); err != nil {
			if validationErr, ok := err.(*ValidationErrorResponse); ok {
				return c.Status(validationErr.Status).JSON(validationErr)
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "VALIDATION_ERROR",
				"message": err.Error(),
			})
		}

		c.Locals("validated_query", obj)
		return c.Next()
	}
}

// ValidatePhoneParam valida o parâmetro :phone da rota
func (vm *ValidationMiddleware) ValidatePhoneParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		phone := c.Params("phone")
		if err := vm.validator.ValidatePhone(phone); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(&ValidationErrorResponse{
				ErrorCode: "INVALID_PARAM",
				Message:   err.Error(),
				Fields: []ValidationError{{
					Field:   "phone",
					Message: err.Error(),
					Value:   phone,
				}},
				Status: fiber.StatusBadRequest,
			})
		}
		return c.Next()
	}
}

func (vm *ValidationMiddleware) ValidatePaginationParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		offset := c.QueryInt("offset", 0)

		limit, offset = vm.validator.ValidatePagination(limit, offset)

		c.Locals("pagination_limit", limit)
		c.Locals("pagination_offset", offset)
		return c.Next()
	}
}

// Validator expõe o validador subjacente para checagens pontuais
func (vm *ValidationMiddleware) Validator() *Validator {
	return vm.validator
}

func GetValidatedBody(c *fiber.Ctx) interface{} {
	return c.Locals("validated_body")
}

func GetValidatedQuery(c *fiber.Ctx) interface{} {
	return c.Locals("validated_query")
}

func GetValidatedPagination(c *fiber.Ctx) (int, int) {
	limit, _ := c.Locals("pagination_limit").(int)
	offset, _ := c.Locals("pagination_offset").(int)
	if limit == 0 {
		limit = 50
	}
	return limit, offset
}
