package transport

import (
	"context"
	"strings"
	"time"
)

// ConnectionState representa o estado reportado pelo upstream
type ConnectionState string

const (
	StateOpen       ConnectionState = "open"
	StateConnecting ConnectionState = "connecting"
	StateClose      ConnectionState = "close"
)

// Event é o envelope tipado emitido pelo transporte
type Event interface {
	isEvent()
}

// QREvent carrega um código QR anunciado pelo upstream
type QREvent struct {
	Code string
}

// ConnectionEvent sinaliza mudança de estado da conexão
type ConnectionEvent struct {
	State    ConnectionState
	IsLogout bool
	// Code carrega o código de erro do upstream quando o fechamento veio
	// de um stream error (usado na classificação de falhas transientes)
	Code string
}

// CredentialUpdateEvent sinaliza que as credenciais persistidas mudaram
type CredentialUpdateEvent struct {
	JID string
}

// MessageEvent carrega uma mensagem recebida do upstream
type MessageEvent struct {
	ID        string
	Sender    string
	Chat      string
	PushName  string
	Text      string
	Type      string
	FromSelf  bool
	IsGroup   bool
	Timestamp time.Time
	// Raw é o envelope bruto do upstream; passa por SafeSerialize antes
	// de qualquer persistência ou fan-out
	Raw interface{}
}

// GroupParticipantsEvent carrega uma mudança de participantes de grupo
type GroupParticipantsEvent struct {
	GroupJID     string
	Action       string // add, remove, promote, demote
	Participants []string
	Timestamp    time.Time
}

func (QREvent) isEvent()                {}
func (ConnectionEvent) isEvent()        {}
func (CredentialUpdateEvent) isEvent()  {}
func (MessageEvent) isEvent()           {}
func (GroupParticipantsEvent) isEvent() {}

// Media representa um conteúdo de mídia para envio
type Media struct {
	Type      string // image, video, audio, document
	Data      []byte
	MimeType  string
	Caption   string
	Filename  string
	Thumbnail []byte
}

// GroupMetadata representa os metadados de um grupo
type GroupMetadata struct {
	JID          string    `json:"jid"`
	Name         string    `json:"name"`
	Topic        string    `json:"topic,omitempty"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transport é a interface estreita que a instância consome. Aberturas,
// envios e consultas podem suspender; envios concorrentes da mesma
// instância são permitidos.
type Transport interface {
	// Connect abre a sessão com as credenciais persistidas. Emite os
	// eventos subsequentes pelo canal de Events.
	Connect(ctx context.Context) error
	// Events retorna o fluxo tipado de eventos do upstream
	Events() <-chan Event
	// SendText envia texto e retorna o id da mensagem no upstream
	SendText(ctx context.Context, jid, text string) (string, error)
	// SendMedia envia mídia e retorna o id da mensagem no upstream
	SendMedia(ctx context.Context, jid string, media Media) (string, error)
	// QueryGroupMetadata consulta os metadados de um grupo
	QueryGroupMetadata(ctx context.Context, jid string) (*GroupMetadata, error)
	// UserID retorna a identidade vinculada; vazio antes de um open bem
	// sucedido
	UserID() string
	// Logout invalida as credenciais no upstream
	Logout(ctx context.Context) error
	// Close encerra a conexão sem invalidar credenciais
	Close()
}

const (
	userServer  = "s.whatsapp.net"
	groupServer = "g.us"
)

// NormalizePhone reduz um telefone a dígitos
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatUserJID converte um telefone no identificador canônico de usuário
func FormatUserJID(phone string) string {
	phone = NormalizePhone(phone)
	if phone == "" {
		return ""
	}
	return phone + "@" + userServer
}

// FormatGroupJID força a forma de grupo de um identificador
func FormatGroupJID(id string) string {
	if id == "" {
		return ""
	}
	if strings.HasSuffix(id, "@"+groupServer) {
		return id
	}
	if at := strings.Index(id, "@"); at >= 0 {
		id = id[:at]
	}
	return id + "@" + groupServer
}

// IsGroupJID verifica se o identificador está na forma de grupo
func IsGroupJID(id string) bool {
	return strings.HasSuffix(id, "@"+groupServer)
}
