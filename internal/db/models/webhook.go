package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Eventos emitidos pelo núcleo do gateway
const (
	EventConnectionUpdate = "connection.update"
	EventMessageReceived  = "message.received"
	EventMessageSent      = "message.sent"
)

// Webhook representa uma inscrição de webhook de uma instância
type Webhook struct {
	ID         string    `json:"id" db:"id"`
	InstanceID string    `json:"instance_id" db:"instance_id"`
	Type       string    `json:"type" db:"webhook_type"`
	Event      string    `json:"event" db:"event"`
	URL        string    `json:"url" db:"url"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Validate valida os dados do webhook
func (w *Webhook) Validate() error {
	if w.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if w.Event == "" {
		return fmt.Errorf("event is required")
	}
	if w.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// WebhookHistoryStatus representa o resultado de uma tentativa de entrega
type WebhookHistoryStatus string

const (
	WebhookHistoryStatusPending WebhookHistoryStatus = "pending"
	WebhookHistoryStatusSuccess WebhookHistoryStatus = "success"
	WebhookHistoryStatusFailed  WebhookHistoryStatus = "failed"
	WebhookHistoryStatusTimeout WebhookHistoryStatus = "timeout"
)

// WebhookHistory representa o registro imutável de uma tentativa de entrega
type WebhookHistory struct {
	ID             string               `json:"id" db:"id"`
	InstanceID     string               `json:"instance_id" db:"instance_id"`
	WebhookID      string               `json:"webhook_id" db:"webhook_id"`
	Event          string               `json:"event" db:"event"`
	Payload        JSONB                `json:"payload" db:"payload"`
	Status         WebhookHistoryStatus `json:"status" db:"status"`
	HTTPStatus     *int                 `json:"http_status,omitempty" db:"http_status"`
	ResponseTimeMs *int64               `json:"response_time_ms,omitempty" db:"response_time_ms"`
	Response       *string              `json:"response,omitempty" db:"response"`
	ErrorMessage   *string              `json:"error_message,omitempty" db:"error_message"`
	RetryCount     int                  `json:"retry_count" db:"retry_count"`
	TriggeredAt    time.Time            `json:"triggered_at" db:"triggered_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty" db:"completed_at"`
}

// SetPayload grava o payload serializado da tentativa
func (h *WebhookHistory) SetPayload(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err == nil {
		h.Payload = JSONB(body)
	}
}

// SetError grava a mensagem de erro da tentativa
func (h *WebhookHistory) SetError(message string) {
	h.ErrorMessage = &message
}

// SetResponse grava um recorte do corpo de resposta
func (h *WebhookHistory) SetResponse(body string) {
	const maxResponse = 4096
	if len(body) > maxResponse {
		body = body[:maxResponse]
	}
	h.Response = &body
}

// WebhookHistoryFilter representa filtros para consulta de histórico
type WebhookHistoryFilter struct {
	InstanceID *string               `json:"instance_id"`
	WebhookID  *string               `json:"webhook_id"`
	Event      *string               `json:"event"`
	Status     *WebhookHistoryStatus `json:"status"`
	DateFrom   *time.Time            `json:"date_from"`
	DateTo     *time.Time            `json:"date_to"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// WebhookHistoryStatistics representa agregados do histórico de entregas
type WebhookHistoryStatistics struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	ByEvent           map[string]int64 `json:"by_event"`
	AvgResponseTimeMs float64          `json:"avg_response_time_ms"`
	SuccessCount      int64            `json:"success_count"`
	FailureCount      int64            `json:"failure_count"`
}
