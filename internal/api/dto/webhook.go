package dto

// CreateWebhookRequest inscreve uma URL num evento da instância
type CreateWebhookRequest struct {
	Event   string `json:"event" validate:"required,gateway_event"`
	URL     string `json:"url" validate:"required,url"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// UpdateWebhookRequest altera uma inscrição existente
type UpdateWebhookRequest struct {
	Event   *string `json:"event,omitempty" validate:"omitempty,gateway_event"`
	URL     *string `json:"url,omitempty" validate:"omitempty,url"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// WebhookHistoryQuery filtra a consulta do histórico de entregas
type WebhookHistoryQuery struct {
	Status    string `query:"status" validate:"omitempty,oneof=pending success failed timeout"`
	Event     string `query:"event" validate:"omitempty,gateway_event"`
	WebhookID string `query:"webhook_id" validate:"omitempty,uuid"`
	DateFrom  string `query:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `query:"date_to" validate:"omitempty,datetime=2006-01-02"`
}
