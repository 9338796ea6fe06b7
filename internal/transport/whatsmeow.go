package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/felipe/zapgate/internal/logger"
)

const eventBufferSize = 64

// WhatsmeowTransport implementa Transport sobre um cliente whatsmeow
type WhatsmeowTransport struct {
	phone      string
	client     *whatsmeow.Client
	classifier *Classifier
	logger     logger.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewWhatsmeowTransport cria um transporte para o telefone usando as
// credenciais do device store
func NewWhatsmeowTransport(phone string, deviceStore *store.Device, classifier *Classifier) *WhatsmeowTransport {
	client := whatsmeow.NewClient(deviceStore, logger.GetWhatsAppLogger(phone))

	t := &WhatsmeowTransport{
		phone:      phone,
		client:     client,
		classifier: classifier,
		logger:     logger.GetWithInstance(phone),
		events:     make(chan Event, eventBufferSize),
		done:       make(chan struct{}),
	}

	client.AddEventHandler(t.handleEvent)

	return t
}

// Events retorna o fluxo tipado de eventos do upstream
func (t *WhatsmeowTransport) Events() <-chan Event {
	return t.events
}

// emit entrega o evento preservando a ordem; bloqueia se o consumidor
// estiver atrasado. Depois do Close nada mais é entregue: a checagem
// inicial de done garante o descarte determinístico.
func (t *WhatsmeowTransport) emit(evt Event) {
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case <-t.done:
	case t.events <- evt:
	}
}

// Connect abre a sessão. Sem credenciais persistidas entra no fluxo de QR:
// o canal de QR precisa ser obtido antes do Connect.
func (t *WhatsmeowTransport) Connect(ctx context.Context) error {
	if t.client.Store.ID == nil {
		return t.connectWithQR(ctx)
	}

	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

func (t *WhatsmeowTransport) connectWithQR(ctx context.Context) error {
	qrChan, err := t.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error().Interface("panic", r).Msg("Panic in QR flow")
			}
		}()

		for evt := range qrChan {
			switch evt.Event {
			case "code":
				t.emit(QREvent{Code: evt.Code})
			case "timeout":
				t.logger.Warn().Msg("QR code timed out")
				t.emit(ConnectionEvent{State: StateClose, Code: "qr-timeout"})
				return
			case "success":
				return
			default:
				t.logger.Debug().Str("event", evt.Event).Msg("QR channel event")
			}
		}
	}()

	return nil
}

func (t *WhatsmeowTransport) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		t.emit(ConnectionEvent{State: StateOpen})

	case *events.PairSuccess:
		t.emit(CredentialUpdateEvent{JID: v.ID.String()})

	case *events.Disconnected:
		t.emit(ConnectionEvent{State: StateClose})

	case *events.LoggedOut:
		t.emit(ConnectionEvent{State: StateClose, IsLogout: true})

	case *events.StreamError:
		switch t.classifier.Classify(v.Code) {
		case ClassBenignStreamReset:
			t.logger.Debug().Str("code", v.Code).Msg("Transient stream error")
		default:
			t.logger.Error().Str("code", v.Code).Msg("Stream error")
		}
		t.emit(ConnectionEvent{State: StateClose, Code: v.Code})

	case *events.ConnectFailure:
		t.logger.Error().Int("reason", int(v.Reason)).Msg("Connection failed")
		t.emit(ConnectionEvent{State: StateClose, Code: fmt.Sprintf("connect-failure:%d", int(v.Reason))})

	case *events.Message:
		t.emit(MessageEvent{
			ID:        v.Info.ID,
			Sender:    v.Info.Sender.String(),
			Chat:      v.Info.Chat.String(),
			PushName:  v.Info.PushName,
			Text:      extractText(v.Message),
			Type:      messageKind(v.Message),
			FromSelf:  v.Info.IsFromMe,
			IsGroup:   v.Info.IsGroup,
			Timestamp: v.Info.Timestamp,
			Raw:       v,
		})

	case *events.GroupInfo:
		t.emitGroupChanges(v)

	case *events.UndecryptableMessage:
		// o upstream reenvia após o retry de sessão; só registra
		t.logger.Debug().Str("from", v.Info.Sender.String()).Msg("Undecryptable message, retry requested upstream")
	}
}

func (t *WhatsmeowTransport) emitGroupChanges(v *events.GroupInfo) {
	groupJID := v.JID.String()

	emitAction := func(action string, jids []types.JID) {
		if len(jids) == 0 {
			return
		}
		participants := make([]string, 0, len(jids))
		for _, jid := range jids {
			participants = append(participants, jid.String())
		}
		t.emit(GroupParticipantsEvent{
			GroupJID:     groupJID,
			Action:       action,
			Participants: participants,
			Timestamp:    v.Timestamp,
		})
	}

	emitAction("add", v.Join)
	emitAction("remove", v.Leave)
	emitAction("promote", v.Promote)
	emitAction("demote", v.Demote)
}

// SendText envia uma mensagem de texto e retorna o id gerado
func (t *WhatsmeowTransport) SendText(ctx context.Context, jid, text string) (string, error) {
	recipient, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("invalid recipient %s: %w", jid, err)
	}

	messageID := t.client.GenerateMessageID()
	msg := &waE2E.Message{Conversation: proto.String(text)}

	_, err = t.client.SendMessage(ctx, recipient, msg, whatsmeow.SendRequestExtra{ID: messageID})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return messageID, nil
}

// SendMedia sobe a mídia para o upstream e envia a mensagem correspondente
func (t *WhatsmeowTransport) SendMedia(ctx context.Context, jid string, media Media) (string, error) {
	recipient, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("invalid recipient %s: %w", jid, err)
	}

	mediaType, err := uploadType(media.Type)
	if err != nil {
		return "", err
	}

	uploaded, err := t.client.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	msg, err := buildMediaMessage(media, uploaded)
	if err != nil {
		return "", err
	}

	messageID := t.client.GenerateMessageID()

	_, err = t.client.SendMessage(ctx, recipient, msg, whatsmeow.SendRequestExtra{ID: messageID})
	if err != nil {
		return "", fmt.Errorf("failed to send media: %w", err)
	}

	return messageID, nil
}

func uploadType(kind string) (whatsmeow.MediaType, error) {
	switch kind {
	case "image":
		return whatsmeow.MediaImage, nil
	case "audio":
		return whatsmeow.MediaAudio, nil
	case "video":
		return whatsmeow.MediaVideo, nil
	case "document":
		return whatsmeow.MediaDocument, nil
	default:
		return "", fmt.Errorf("unsupported media type: %s", kind)
	}
}

func buildMediaMessage(media Media, uploaded whatsmeow.UploadResponse) (*waE2E.Message, error) {
	mimeType := media.MimeType
	fileLength := proto.Uint64(uint64(len(media.Data)))

	switch media.Type {
	case "image":
		if mimeType == "" {
			mimeType = http.DetectContentType(media.Data)
		}
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				Caption:       proto.String(media.Caption),
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(mimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    fileLength,
				JPEGThumbnail: media.Thumbnail,
			},
		}, nil

	case "audio":
		if mimeType == "" {
			mimeType = "audio/ogg; codecs=opus"
		}
		return &waE2E.Message{
			AudioMessage: &waE2E.AudioMessage{
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(mimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    fileLength,
				PTT:           proto.Bool(true),
			},
		}, nil

	case "video":
		if mimeType == "" {
			mimeType = http.DetectContentType(media.Data)
		}
		return &waE2E.Message{
			VideoMessage: &waE2E.VideoMessage{
				Caption:       proto.String(media.Caption),
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(mimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    fileLength,
				JPEGThumbnail: media.Thumbnail,
			},
		}, nil

	case "document":
		if mimeType == "" {
			mimeType = http.DetectContentType(media.Data)
		}
		return &waE2E.Message{
			DocumentMessage: &waE2E.DocumentMessage{
				Title:         proto.String(media.Filename),
				FileName:      proto.String(media.Filename),
				Caption:       proto.String(media.Caption),
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(mimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    fileLength,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported media type: %s", media.Type)
	}
}

// QueryGroupMetadata consulta os metadados do grupo respeitando o contexto.
// A chamada do upstream não aceita contexto, então a consulta roda em uma
// goroutine e o cancelamento abandona o resultado.
func (t *WhatsmeowTransport) QueryGroupMetadata(ctx context.Context, jid string) (*GroupMetadata, error) {
	groupJID, err := types.ParseJID(FormatGroupJID(jid))
	if err != nil {
		return nil, fmt.Errorf("invalid group %s: %w", jid, err)
	}

	type result struct {
		info *types.GroupInfo
		err  error
	}
	resultChan := make(chan result, 1)

	go func() {
		info, err := t.client.GetGroupInfo(groupJID)
		resultChan <- result{info: info, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resultChan:
		if r.err != nil {
			return nil, fmt.Errorf("failed to get group info: %w", r.err)
		}
		participants := make([]string, 0, len(r.info.Participants))
		for _, p := range r.info.Participants {
			participants = append(participants, p.JID.String())
		}
		return &GroupMetadata{
			JID:          groupJID.String(),
			Name:         r.info.Name,
			Topic:        r.info.Topic,
			Participants: participants,
			CreatedAt:    r.info.GroupCreated,
		}, nil
	}
}

// UserID retorna o JID vinculado; vazio antes do primeiro open
func (t *WhatsmeowTransport) UserID() string {
	if t.client.Store.ID == nil {
		return ""
	}
	return t.client.Store.ID.String()
}

// Logout invalida as credenciais no upstream
func (t *WhatsmeowTransport) Logout(ctx context.Context) error {
	if err := t.client.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// Close encerra a conexão sem invalidar credenciais
func (t *WhatsmeowTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.client.Disconnect()
	})
}

// extractText obtém o texto legível de uma mensagem do upstream
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

// messageKind classifica a mensagem para persistência
func messageKind(msg *waE2E.Message) string {
	switch {
	case msg == nil:
		return "other"
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetDocumentMessage() != nil:
		return "document"
	default:
		return "other"
	}
}
