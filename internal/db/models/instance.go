package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// InstanceStatus representa os possíveis status de uma instância
type InstanceStatus string

const (
	InstanceStatusPending      InstanceStatus = "pending"
	InstanceStatusConnecting   InstanceStatus = "connecting"
	InstanceStatusQRReady      InstanceStatus = "qr_ready"
	InstanceStatusActive       InstanceStatus = "active"
	InstanceStatusReconnecting InstanceStatus = "reconnecting"
	InstanceStatusInactive     InstanceStatus = "inactive"
	InstanceStatusError        InstanceStatus = "error"
	InstanceStatusLoggedOut    InstanceStatus = "logged_out"
)

// Instance representa uma instância WhatsApp no banco de dados
type Instance struct {
	ID              string          `json:"id" db:"id"`
	Phone           string          `json:"phone" db:"phone"`
	Name            string          `json:"name" db:"name"`
	Alias           *string         `json:"alias,omitempty" db:"alias"`
	APIKey          string          `json:"api_key" db:"api_key"`
	JID             *string         `json:"jid,omitempty" db:"jid"`
	Status          InstanceStatus  `json:"status" db:"status"`
	PluginOverrides PluginOverrides `json:"plugin_overrides" db:"plugin_overrides"`
	QRCode          *string         `json:"qr_code,omitempty" db:"qr_code"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	LastConnectedAt *time.Time      `json:"last_connected_at,omitempty" db:"last_connected_at"`

	MessagesReceived int `json:"messages_received" db:"messages_received"`
	MessagesSent     int `json:"messages_sent" db:"messages_sent"`
	Reconnections    int `json:"reconnections" db:"reconnections"`
}

// PluginOverrides representa o mapa de habilitação de plugins por instância
type PluginOverrides map[string]bool

// Value implementa driver.Valuer para PluginOverrides
func (p PluginOverrides) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

// Scan implementa sql.Scanner para PluginOverrides
func (p *PluginOverrides) Scan(value interface{}) error {
	if value == nil {
		*p = make(PluginOverrides)
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into PluginOverrides", value)
	}
}

// Validate valida os dados da instância
func (i *Instance) Validate() error {
	if i.Phone == "" {
		return fmt.Errorf("phone is required")
	}
	if i.Name == "" {
		return fmt.Errorf("name is required")
	}
	if i.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return nil
}

// IsConnected verifica se a instância está com sessão ativa
func (i *Instance) IsConnected() bool {
	return i.Status == InstanceStatusActive
}

// UpdateStatus atualiza o status da instância
func (i *Instance) UpdateStatus(status InstanceStatus) {
	i.Status = status
	i.UpdatedAt = time.Now()

	if status == InstanceStatusActive {
		now := time.Now()
		i.LastConnectedAt = &now
	}
}

// InstanceFilter representa filtros para listagem de instâncias
type InstanceFilter struct {
	Status   *InstanceStatus `json:"status,omitempty"`
	Name     *string         `json:"name,omitempty"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	OrderBy  string          `json:"order_by"`
	OrderDir string          `json:"order_dir"`
}

// InstanceListResponse representa a resposta da listagem de instâncias
type InstanceListResponse struct {
	Instances  []Instance `json:"instances"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	TotalPages int        `json:"total_pages"`
}

// InstanceStatistics representa estatísticas de uma instância
type InstanceStatistics struct {
	MessagesReceived int        `json:"messages_received"`
	MessagesSent     int        `json:"messages_sent"`
	Reconnections    int        `json:"reconnections"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
}
