package plugin

import (
	"context"

	"github.com/felipe/zapgate/internal/transport"
)

// Kind identifica o tipo de evento entregue à cadeia de plugins
type Kind string

const (
	KindMessage           Kind = "message"
	KindGroupParticipants Kind = "group_participants"
)

// TextSender é a fatia do transporte que os plugins podem usar para
// responder eventos
type TextSender interface {
	SendText(ctx context.Context, jid, text string) (string, error)
}

// Event é o envelope entregue aos handlers habilitados de uma instância
type Event struct {
	Phone   string
	Kind    Kind
	Message *transport.MessageEvent
	Group   *transport.GroupParticipantsEvent
	Sender  TextSender
}

// Plugin é um handler de eventos registrado no processo. Handlers devem ser
// seguros para uso concorrente entre instâncias.
type Plugin interface {
	Name() string
	Description() string
	// DefaultEnabled indica se o plugin nasce habilitado quando a instância
	// não tem override persistido. Hoje todos nascem desabilitados.
	DefaultEnabled() bool
	Handle(ctx context.Context, event *Event) error
}
