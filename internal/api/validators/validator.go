package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/felipe/zapgate/internal/db/models"
)

// Validator estrutura principal do validador
type Validator struct {
	validate *validator.Validate
}

// ValidationError estrutura de erro de validação
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationErrorResponse resposta de erro de validação
type ValidationErrorResponse struct {
	ErrorCode string            `json:"error"`
	Message   string            `json:"message"`
	Fields    []ValidationError `json:"fields,omitempty"`
	Status    int               `json:"status"`
}

// Error implementa a interface error
func (v *ValidationErrorResponse) Error() string {
	return v.Message
}

var phoneDigits = regexp.MustCompile(`^[0-9]{8,15}$`)

// NewValidator cria uma nova instância do validador
func NewValidator() *Validator {
	v := validator.New()

	registerCustomValidations(v)

	// Nomes de campo pelas tags JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v}
}

func registerCustomValidations(v *validator.Validate) {
	// Telefone normalizável para dígitos (aceita +, espaços e pontuação)
	v.RegisterValidation("phone", validatePhone)

	// Evento conhecido do gateway
	v.RegisterValidation("gateway_event", validateGatewayEvent)
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneDigits.MatchString(normalizeDigits(fl.Field().String()))
}

func validateGatewayEvent(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.EventConnectionUpdate, models.EventMessageReceived, models.EventMessageSent:
		return true
	}
	return false
}

func normalizeDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateStruct valida uma estrutura
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// ValidateAndBindJSON valida e faz bind do JSON da requisição
func (v *Validator) ValidateAndBindJSON(c *fiber.Ctx, obj interface{}) error {
	if err := c.BodyParser(obj); err != nil {
		return &ValidationErrorResponse{
			ErrorCode: "INVALID_JSON",
			Message:   "Invalid JSON format",
			Status:    fiber.StatusBadRequest,
		}
	}

	if err := v.ValidateStruct(obj); err != nil {
		return v.formatValidationError(err)
	}

	return nil
}

// ValidateQuery valida parâmetros de query
func (v *Validator) ValidateQuery(c *fiber.Ctx, obj interface{}) error {
	if err := c.QueryParser(obj); err != nil {
		return &ValidationErrorResponse{
			ErrorCode: "INVALID_QUERY",
			Message:   "Invalid query parameters",
			Status:    fiber.StatusBadRequest,
		}
	}

	if err := v.ValidateStruct(obj); err != nil {
		return v.formatValidationError(err)
	}

	return nil
}

func (v *Validator) formatValidationError(err error) *ValidationErrorResponse {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, err := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Message: getValidationMessage(err),
				Value:   fmt.Sprintf("%v", err.Value()),
			})
		}
	}

	return &ValidationErrorResponse{
		ErrorCode: "VALIDATION_ERROR",
		Message:   "Request validation failed",
		Fields:    validationErrors,
		Status:    fiber.StatusBadRequest,
	}
}

func getValidationMessage(err validator.FieldError) string {
	field := err.Field()
	tag := err.Tag()
	param := err.Param()

	switch tag {
	case "required":
		return fmt.Sprintf("Field '%s' is required", field)
	case "url":
		return fmt.Sprintf("Field '%s' must be a valid URL", field)
	case "uuid":
		return fmt.Sprintf("Field '%s' must be a valid UUID", field)
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s characters long", field, param)
	case "phone":
		return fmt.Sprintf("Field '%s' must be a phone number with 8 to 15 digits", field)
	case "gateway_event":
		return fmt.Sprintf("Field '%s' must be one of: %s, %s, %s", field,
			models.EventConnectionUpdate, models.EventMessageReceived, models.EventMessageSent)
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of: %s", field, param)
	case "datetime":
		return fmt.Sprintf("Field '%s' must be a valid date in format %s", field, param)
	default:
		return fmt.Sprintf("Field '%s' is invalid", field)
	}
}

// ValidatePhone valida um telefone vindo de parâmetro de rota
func (v *Validator) ValidatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone is required")
	}
	if !phoneDigits.MatchString(normalizeDigits(phone)) {
		return fmt.Errorf("phone must contain 8 to 15 digits")
	}
	return nil
}

// ValidatePagination normaliza os parâmetros de paginação
func (v *Validator) ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ValidateDateRange valida um intervalo de datas em YYYY-MM-DD
func (v *Validator) ValidateDateRange(dateFrom, dateTo string) (*time.Time, *time.Time, error) {
	const layout = "2006-01-02"
	var from, to *time.Time

	if dateFrom != "" {
		parsed, err := time.Parse(layout, dateFrom)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_from format, use YYYY-MM-DD")
		}
		from = &parsed
	}

	if dateTo != "" {
		parsed, err := time.Parse(layout, dateTo)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_to format, use YYYY-MM-DD")
		}
		// inclui o dia inteiro
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		to = &parsed
	}

	if from != nil && to != nil && from.After(*to) {
		return nil, nil, fmt.Errorf("date_from cannot be after date_to")
	}

	return from, to, nil
}
