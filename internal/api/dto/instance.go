package dto

// CreateInstanceRequest cria uma nova instância do gateway
type CreateInstanceRequest struct {
	Phone string  `json:"phone" validate:"required,phone"`
	Name  string  `json:"name" validate:"required,min=1,max=100"`
	Alias *string `json:"alias,omitempty" validate:"omitempty,max=100"`
}

// UpdateInstanceRequest altera nome e/ou alias de uma instância
type UpdateInstanceRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Alias *string `json:"alias,omitempty" validate:"omitempty,max=100"`
}

// PluginOverridesRequest aplica overrides parciais de plugins
type PluginOverridesRequest struct {
	Plugins map[string]bool `json:"plugins" validate:"required,min=1"`
}
