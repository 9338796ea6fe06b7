package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Message representa uma mensagem trocada por uma instância
type Message struct {
	ID         string    `json:"id" db:"id"`
	InstanceID string    `json:"instance_id" db:"instance_id"`
	Direction  string    `json:"direction" db:"direction"`
	Sender     string    `json:"sender" db:"sender"`
	Recipient  string    `json:"recipient" db:"recipient"`
	Type       string    `json:"type" db:"msg_type"`
	Content    JSONB     `json:"content" db:"content"`
	Status     string    `json:"status" db:"status"`
	SentAt     *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// JSONB armazena objetos JSON arbitrários (payload da mensagem: texto,
// push name, id e timestamp do upstream, envelope bruto sanitizado)
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return nil
	}
}

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeOther    MessageType = "other"
)

type MessageDirection string

const (
	MessageDirectionIncoming MessageDirection = "incoming"
	MessageDirectionOutgoing MessageDirection = "outgoing"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusReceived  MessageStatus = "received"
)

func (m *Message) IsMediaMessage() bool {
	return m.Type == string(MessageTypeImage) ||
		m.Type == string(MessageTypeAudio) ||
		m.Type == string(MessageTypeVideo) ||
		m.Type == string(MessageTypeDocument)
}

// GetDisplayContent retorna uma representação textual do conteúdo
func (m *Message) GetDisplayContent() string {
	if text, ok := m.Content["text"].(string); ok && text != "" {
		return text
	}
	if caption, ok := m.Content["caption"].(string); ok && caption != "" {
		return caption
	}
	return "[" + m.Type + "]"
}

// MessageFilter representa filtros para listagem de mensagens
type MessageFilter struct {
	InstanceID *string           `json:"instance_id"`
	Sender     *string           `json:"sender"`
	Recipient  *string           `json:"recipient"`
	Type       *MessageType      `json:"type"`
	Direction  *MessageDirection `json:"direction"`
	Status     *MessageStatus    `json:"status"`
	DateFrom   *time.Time        `json:"date_from"`
	DateTo     *time.Time        `json:"date_to"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// MessageStatistics representa estatísticas agregadas de mensagens
type MessageStatistics struct {
	TotalMessages    int64            `json:"total_messages"`
	MessagesByType   map[string]int64 `json:"messages_by_type"`
	MessagesByStatus map[string]int64 `json:"messages_by_status"`
	IncomingMessages int64            `json:"incoming_messages"`
	OutgoingMessages int64            `json:"outgoing_messages"`
	FailedMessages   int64            `json:"failed_messages"`
	LastMessageTime  *time.Time       `json:"last_message_time"`
}
