package instance

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/transport"
)

// NewWhatsmeowFactory cria a fábrica de transportes padrão sobre o container
// de credenciais. O JID persistido restaura o device existente; sem JID (ou
// device perdido) um device novo entra no fluxo de QR.
func NewWhatsmeowFactory(container *sqlstore.Container, classifier *transport.Classifier) TransportFactory {
	log := logger.Get()

	return func(phone string, jid *string) (transport.Transport, error) {
		if container == nil {
			return nil, fmt.Errorf("credential store is not available")
		}

		var deviceStore *store.Device

		if jid != nil && *jid != "" {
			parsed, err := types.ParseJID(*jid)
			if err != nil {
				log.Warn().Err(err).Str("phone", phone).Str("jid", *jid).Msg("Invalid persisted JID, creating new device")
				deviceStore = container.NewDevice()
			} else {
				deviceStore, err = container.GetDevice(context.Background(), parsed)
				if err != nil || deviceStore == nil {
					log.Warn().Err(err).Str("phone", phone).Msg("Device not found for JID, creating new device")
					deviceStore = container.NewDevice()
				}
			}
		} else {
			deviceStore = container.NewDevice()
		}

		return transport.NewWhatsmeowTransport(phone, deviceStore, classifier), nil
	}
}
