package dto

// SendTextRequest envia texto para um contato
type SendTextRequest struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendGroupTextRequest envia texto para um grupo
type SendGroupTextRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// MediaPayload descreve a mídia a enviar. URL aceita http(s), data URL ou
// base64 puro.
type MediaPayload struct {
	Type     string `json:"type" validate:"required,oneof=image video audio document"`
	URL      string `json:"url" validate:"required"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty" validate:"omitempty,max=1024"`
	Filename string `json:"filename,omitempty" validate:"omitempty,max=255"`
}

// SendMediaRequest envia mídia para um contato
type SendMediaRequest struct {
	To    string       `json:"to" validate:"required"`
	Media MediaPayload `json:"media" validate:"required"`
}

// MessageListQuery filtra a listagem de mensagens de uma instância
type MessageListQuery struct {
	Direction string `query:"direction" validate:"omitempty,oneof=incoming outgoing"`
	Type      string `query:"type" validate:"omitempty,max=30"`
	Status    string `query:"status" validate:"omitempty,max=30"`
}
