package instance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/db/models"
	"github.com/felipe/zapgate/internal/db/repositories"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/plugin"
	"github.com/felipe/zapgate/internal/transport"
)

// EventDispatcher é o contrato mínimo que a instância usa para fan-out de
// eventos aos webhooks
type EventDispatcher interface {
	Dispatch(instanceID, event string, data interface{})
}

// TransportFactory constrói o transporte de uma instância. O JID persistido,
// quando presente, restaura as credenciais existentes.
type TransportFactory func(phone string, jid *string) (transport.Transport, error)

// Sub-status emitidos em connection.update
const (
	subStatusQRReady       = "qr_ready"
	subStatusConnecting    = "connecting"
	subStatusConnected     = "connected"
	subStatusReconnecting  = "reconnecting"
	subStatusLoggedOut     = "logged_out"
	subStatusManualRestart = "manual_restart"
)

// Instance supervisiona uma sessão: estado de conexão, pipeline de
// mensagens, cadeia de plugins e emissão de eventos
type Instance struct {
	mu sync.Mutex

	record     *models.Instance
	cfg        *config.Config
	factory    TransportFactory
	classifier *transport.Classifier
	chain      *plugin.Chain
	dispatcher EventDispatcher

	instances repositories.InstanceRepository
	messages  repositories.MessageRepository
	logs      repositories.InstanceLogRepository

	logger     logger.Logger
	groupCache *cache.Cache

	transport transport.Transport
	stopLoop  chan struct{}

	status            models.InstanceStatus
	qrCode            *string
	reconnectAttempts int
	manualRestart     bool
	reconnectTimer    *time.Timer
	stopped           bool
}

// Deps agrupa as dependências compartilhadas pelas instâncias
type Deps struct {
	Config     *config.Config
	Factory    TransportFactory
	Classifier *transport.Classifier
	Registry   *plugin.Registry
	Dispatcher EventDispatcher
	Instances  repositories.InstanceRepository
	Messages   repositories.MessageRepository
	Logs       repositories.InstanceLogRepository
}

// NewInstance cria a instância em memória a partir do registro persistido
func NewInstance(record *models.Instance, deps Deps) *Instance {
	return &Instance{
		record:     record,
		cfg:        deps.Config,
		factory:    deps.Factory,
		classifier: deps.Classifier,
		chain:      plugin.NewChain(record.Phone, deps.Registry, record.PluginOverrides),
		dispatcher: deps.Dispatcher,
		instances:  deps.Instances,
		messages:   deps.Messages,
		logs:       deps.Logs,
		logger:     logger.GetWithInstance(record.Phone),
		groupCache: cache.New(cache.NoExpiration, 10*time.Minute),
		status:     record.Status,
	}
}

// Phone retorna o telefone normalizado da instância
func (i *Instance) Phone() string {
	return i.record.Phone
}

// ID retorna o id persistido da instância
func (i *Instance) ID() string {
	return i.record.ID
}

// APIKey retorna a chave de API gerada para a instância
func (i *Instance) APIKey() string {
	return i.record.APIKey
}

// Chain retorna a cadeia de plugins da instância
func (i *Instance) Chain() *plugin.Chain {
	return i.chain
}

// Snapshot é a visão externa do estado corrente
type Snapshot struct {
	ID                string                `json:"id"`
	Phone             string                `json:"phone"`
	Name              string                `json:"name"`
	Alias             *string               `json:"alias,omitempty"`
	JID               *string               `json:"jid,omitempty"`
	Status            models.InstanceStatus `json:"status"`
	Connected         bool                  `json:"connected"`
	QRCode            *string               `json:"qr_code,omitempty"`
	ReconnectAttempts int                   `json:"reconnect_attempts"`
}

// Snapshot retorna a visão atual da instância
func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	return Snapshot{
		ID:                i.record.ID,
		Phone:             i.record.Phone,
		Name:              i.record.Name,
		Alias:             i.record.Alias,
		JID:               i.record.JID,
		Status:            i.status,
		Connected:         i.status == models.InstanceStatusActive,
		QRCode:            i.qrCode,
		ReconnectAttempts: i.reconnectAttempts,
	}
}

// Start abre o transporte e entra em connecting. Chamadas com a instância
// já conectando ou ativa são ignoradas.
func (i *Instance) Start() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return fmt.Errorf("instance %s is stopped", i.record.Phone)
	}
	if i.transport != nil && (i.status == models.InstanceStatusActive || i.status == models.InstanceStatusConnecting) {
		i.mu.Unlock()
		return nil
	}

	t, err := i.factory(i.record.Phone, i.record.JID)
	if err != nil {
		i.mu.Unlock()
		return fmt.Errorf("failed to build transport: %w", err)
	}

	i.detachTransportLocked()
	i.transport = t
	stop := make(chan struct{})
	i.stopLoop = stop
	i.mu.Unlock()

	go i.eventLoop(t, stop)

	i.setStatus(models.InstanceStatusConnecting, subStatusConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), i.cfg.WhatsApp.Timeout)
	defer cancel()

	if err := t.Connect(ctx); err != nil {
		i.appendLog(models.LogLevelError, fmt.Sprintf("connect failed: %v", err))
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	return nil
}

// detachTransportLocked encerra o loop e o transporte atuais; exige i.mu
func (i *Instance) detachTransportLocked() {
	if i.stopLoop != nil {
		close(i.stopLoop)
		i.stopLoop = nil
	}
	if i.transport != nil {
		i.transport.Close()
		i.transport = nil
	}
}

// eventLoop consome os eventos do transporte em série; eventos de um
// transporte já substituído são descartados
func (i *Instance) eventLoop(t transport.Transport, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case evt := <-t.Events():
			if evt == nil {
				continue
			}
			i.mu.Lock()
			current := i.transport == t
			i.mu.Unlock()
			if !current {
				return
			}
			i.handleEvent(evt)
		}
	}
}

func (i *Instance) handleEvent(evt transport.Event) {
	switch e := evt.(type) {
	case transport.QREvent:
		i.handleQR(e)
	case transport.ConnectionEvent:
		i.handleConnection(e)
	case transport.CredentialUpdateEvent:
		i.handleCredentialUpdate(e)
	case transport.MessageEvent:
		i.handleMessage(e)
	case transport.GroupParticipantsEvent:
		i.handleGroupUpdate(e)
	}
}

func (i *Instance) handleQR(evt transport.QREvent) {
	qrBase64, err := renderQRCode(evt.Code)
	if err != nil {
		i.logger.Error().Err(err).Msg("Failed to render QR code image")
		qrBase64 = evt.Code
	}
	renderQRTerminal(evt.Code, i.record.Phone)

	i.mu.Lock()
	i.qrCode = &qrBase64
	i.mu.Unlock()

	if err := i.instances.UpdateQRCode(i.record.Phone, &qrBase64); err != nil {
		i.logger.Error().Err(err).Msg("Failed to persist QR code")
	}

	i.setStatus(models.InstanceStatusQRReady, subStatusQRReady)
}

func (i *Instance) handleConnection(evt transport.ConnectionEvent) {
	switch evt.State {
	case transport.StateOpen:
		i.handleOpen()
	case transport.StateConnecting:
		i.setStatus(models.InstanceStatusConnecting, subStatusConnecting)
	case transport.StateClose:
		i.handleClose(evt)
	}
}

func (i *Instance) handleOpen() {
	i.mu.Lock()
	i.reconnectAttempts = 0
	i.qrCode = nil
	jid := ""
	if i.transport != nil {
		jid = i.transport.UserID()
	}
	i.mu.Unlock()

	if err := i.instances.UpdateQRCode(i.record.Phone, nil); err != nil {
		i.logger.Error().Err(err).Msg("Failed to clear QR code")
	}
	if jid != "" {
		i.record.JID = &jid
		if err := i.instances.Update(i.record); err != nil {
			i.logger.Error().Err(err).Msg("Failed to persist JID")
		}
	}

	i.setStatus(models.InstanceStatusActive, subStatusConnected)
	i.appendLog(models.LogLevelInfo, "connection established")
}

// handleClose aplica a política de fechamento: logout ou orçamento de
// reconexão esgotado derrubam a sessão; restart manual para em inactive,
// exceto quando o código é transiente; o resto agenda reconexão
func (i *Instance) handleClose(evt transport.ConnectionEvent) {
	i.mu.Lock()
	manual := i.manualRestart
	// flag de restart manual é de tiro único: sempre limpa no primeiro close
	i.manualRestart = false
	attempts := i.reconnectAttempts
	i.mu.Unlock()

	transientCode := i.classifier.IsTransientStreamCode(evt.Code)

	switch {
	case evt.IsLogout:
		i.appendLog(models.LogLevelWarn, "session logged out by upstream")
		i.softClean()

	case manual && !transientCode:
		i.setStatus(models.InstanceStatusInactive, subStatusManualRestart)
		i.appendLog(models.LogLevelInfo, "transport closed for manual restart")

	case attempts >= i.cfg.WhatsApp.MaxReconnectAttempts:
		i.appendLog(models.LogLevelWarn,
			fmt.Sprintf("reconnect budget exhausted after %d attempts", attempts))
		i.softClean()

	default:
		i.mu.Lock()
		i.reconnectAttempts++
		attempt := i.reconnectAttempts
		i.mu.Unlock()

		if err := i.instances.IncrementCounter(i.record.Phone, "reconnections"); err != nil {
			i.logger.Error().Err(err).Msg("Failed to increment reconnection counter")
		}

		i.setStatus(models.InstanceStatusReconnecting, subStatusReconnecting)
		i.appendLog(models.LogLevelWarn,
			fmt.Sprintf("connection closed, reconnect attempt %d/%d scheduled", attempt, i.cfg.WhatsApp.MaxReconnectAttempts))

		i.mu.Lock()
		if i.reconnectTimer != nil {
			i.reconnectTimer.Stop()
		}
		i.reconnectTimer = time.AfterFunc(i.cfg.WhatsApp.ReconnectDelay, func() {
			if err := i.Start(); err != nil {
				i.logger.Error().Err(err).Msg("Scheduled reconnect failed")
			}
		})
		i.mu.Unlock()
	}
}

func (i *Instance) handleCredentialUpdate(evt transport.CredentialUpdateEvent) {
	i.record.JID = &evt.JID
	if err := i.instances.Update(i.record); err != nil {
		i.logger.Error().Err(err).Str("jid", evt.JID).Msg("Failed to persist paired JID")
		return
	}
	i.logger.Info().Str("jid", evt.JID).Msg("Credentials paired")
}

// softClean remove o estado de runtime e as credenciais mas preserva o
// registro persistido (com status inactive)
func (i *Instance) softClean() {
	i.mu.Lock()
	if i.reconnectTimer != nil {
		i.reconnectTimer.Stop()
		i.reconnectTimer = nil
	}
	i.detachTransportLocked()
	i.qrCode = nil
	i.status = models.InstanceStatusLoggedOut
	i.mu.Unlock()

	removeCredentials(i.cfg, i.record.Phone, i.logger)

	if err := i.instances.UpdateStatus(i.record.Phone, models.InstanceStatusInactive); err != nil {
		i.logger.Error().Err(err).Msg("Failed to persist status after soft clean")
	}
	if err := i.instances.UpdateQRCode(i.record.Phone, nil); err != nil {
		i.logger.Error().Err(err).Msg("Failed to clear QR code after soft clean")
	}

	i.emitConnectionUpdate(subStatusLoggedOut)
}

// setStatus grava e emite uma transição de estado
func (i *Instance) setStatus(status models.InstanceStatus, subStatus string) {
	i.mu.Lock()
	i.status = status
	i.mu.Unlock()

	if err := i.instances.UpdateStatus(i.record.Phone, status); err != nil {
		i.logger.Error().Err(err).Str("status", string(status)).Msg("Failed to persist status")
	}

	i.emitConnectionUpdate(subStatus)
}

func (i *Instance) emitConnectionUpdate(subStatus string) {
	i.dispatcher.Dispatch(i.record.ID, models.EventConnectionUpdate, map[string]interface{}{
		"phone":  i.record.Phone,
		"status": subStatus,
	})
}

// handleMessage executa o pipeline de entrada: sanitiza, persiste, roda a
// cadeia de plugins e emite o webhook. Mensagens da própria instância são
// ignoradas; falha em um estágio não aborta os demais.
func (i *Instance) handleMessage(evt transport.MessageEvent) {
	if evt.FromSelf {
		return
	}

	sanitized := transport.SafeSerialize(evt.Raw)

	content := models.JSONB{
		"upstream_id": evt.ID,
		"text":        evt.Text,
		"push_name":   evt.PushName,
		"chat":        evt.Chat,
		"is_group":    evt.IsGroup,
		"raw":         sanitized,
	}

	sentAt := evt.Timestamp
	message := &models.Message{
		InstanceID: i.record.ID,
		Direction:  string(models.MessageDirectionIncoming),
		Sender:     evt.Sender,
		Recipient:  i.record.Phone,
		Type:       evt.Type,
		Content:    content,
		Status:     string(models.MessageStatusReceived),
		SentAt:     &sentAt,
	}
	if err := i.messages.Create(message); err != nil {
		i.logger.Error().Err(err).Str("upstream_id", evt.ID).Msg("Failed to persist inbound message")
	}
	if err := i.instances.IncrementCounter(i.record.Phone, "messages_received"); err != nil {
		i.logger.Error().Err(err).Msg("Failed to increment received counter")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	i.chain.Dispatch(ctx, &plugin.Event{
		Phone:   i.record.Phone,
		Kind:    plugin.KindMessage,
		Message: &evt,
		Sender:  pluginSender{i},
	})

	i.dispatcher.Dispatch(i.record.ID, models.EventMessageReceived, map[string]interface{}{
		"id":        evt.ID,
		"from":      evt.Sender,
		"chat":      evt.Chat,
		"push_name": evt.PushName,
		"text":      evt.Text,
		"type":      evt.Type,
		"is_group":  evt.IsGroup,
		"timestamp": evt.Timestamp.UTC().Format(time.RFC3339),
		"raw":       sanitized,
	})
}

// handleGroupUpdate entrega mudanças de participantes a plugins e webhooks;
// não vira linha de Message
func (i *Instance) handleGroupUpdate(evt transport.GroupParticipantsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	i.chain.Dispatch(ctx, &plugin.Event{
		Phone:  i.record.Phone,
		Kind:   plugin.KindGroupParticipants,
		Group:  &evt,
		Sender: pluginSender{i},
	})

	i.dispatcher.Dispatch(i.record.ID, models.EventMessageReceived, map[string]interface{}{
		"group":        evt.GroupJID,
		"action":       evt.Action,
		"participants": evt.Participants,
		"timestamp":    evt.Timestamp.UTC().Format(time.RFC3339),
	})
}

// SendText envia texto para um usuário
func (i *Instance) SendText(ctx context.Context, to, text string) (string, error) {
	jid := transport.FormatUserJID(to)
	if jid == "" {
		return "", fmt.Errorf("%w: recipient is required", ErrBadInput)
	}
	return i.send(ctx, jid, text, func(t transport.Transport) (string, error) {
		return t.SendText(ctx, jid, text)
	}, string(models.MessageTypeText))
}

// SendGroupText envia texto para um grupo
func (i *Instance) SendGroupText(ctx context.Context, groupID, text string) (string, error) {
	jid := transport.FormatGroupJID(strings.TrimSpace(groupID))
	if jid == "" {
		return "", fmt.Errorf("%w: group id is required", ErrBadInput)
	}
	return i.send(ctx, jid, text, func(t transport.Transport) (string, error) {
		return t.SendText(ctx, jid, text)
	}, string(models.MessageTypeText))
}

// SendMedia envia mídia para um usuário ou grupo
func (i *Instance) SendMedia(ctx context.Context, to string, media transport.Media) (string, error) {
	jid := strings.TrimSpace(to)
	if transport.IsGroupJID(jid) {
		jid = transport.FormatGroupJID(jid)
	} else {
		jid = transport.FormatUserJID(jid)
	}
	if jid == "" {
		return "", fmt.Errorf("%w: recipient is required", ErrBadInput)
	}
	if len(media.Data) == 0 {
		return "", fmt.Errorf("%w: media content is required", ErrBadInput)
	}
	return i.send(ctx, jid, media.Caption, func(t transport.Transport) (string, error) {
		return t.SendMedia(ctx, jid, media)
	}, media.Type)
}

// send aplica o pipeline de saída: recusa fora de active, delega ao
// transporte, persiste o registro e emite message.sent
func (i *Instance) send(ctx context.Context, jid, text string, deliver func(transport.Transport) (string, error), msgType string) (string, error) {
	if text == "" && msgType == string(models.MessageTypeText) {
		return "", fmt.Errorf("%w: message text is required", ErrBadInput)
	}

	i.mu.Lock()
	active := i.status == models.InstanceStatusActive
	t := i.transport
	i.mu.Unlock()

	if !active || t == nil {
		return "", fmt.Errorf("%w: instance %s has status %s", ErrNotConnected, i.record.Phone, i.status)
	}

	messageID, err := deliver(t)
	if err != nil {
		i.appendLog(models.LogLevelError, fmt.Sprintf("send to %s failed: %v", jid, err))
		return "", err
	}

	now := time.Now()
	message := &models.Message{
		InstanceID: i.record.ID,
		Direction:  string(models.MessageDirectionOutgoing),
		Sender:     i.record.Phone,
		Recipient:  jid,
		Type:       msgType,
		Content: models.JSONB{
			"upstream_id": messageID,
			"text":        text,
		},
		Status: string(models.MessageStatusSent),
		SentAt: &now,
	}
	if err := i.messages.Create(message); err != nil {
		i.logger.Error().Err(err).Str("upstream_id", messageID).Msg("Failed to persist outbound message")
	}
	if err := i.instances.IncrementCounter(i.record.Phone, "messages_sent"); err != nil {
		i.logger.Error().Err(err).Msg("Failed to increment sent counter")
	}

	i.dispatcher.Dispatch(i.record.ID, models.EventMessageSent, map[string]interface{}{
		"id":        messageID,
		"to":        jid,
		"type":      msgType,
		"timestamp": now.UTC().Format(time.RFC3339),
	})

	i.appendLog(models.LogLevelInfo, fmt.Sprintf("message %s sent to %s", messageID, jid))

	return messageID, nil
}

// GroupMetadata memoiza metadados de grupo pela vida da instância; falha
// do transporte não entra no cache
func (i *Instance) GroupMetadata(ctx context.Context, groupID string) (*transport.GroupMetadata, error) {
	jid := transport.FormatGroupJID(strings.TrimSpace(groupID))
	if jid == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrBadInput)
	}

	if cached, found := i.groupCache.Get(jid); found {
		meta := cached.(transport.GroupMetadata)
		return &meta, nil
	}

	i.mu.Lock()
	t := i.transport
	i.mu.Unlock()
	if t == nil {
		return nil, fmt.Errorf("%w: instance %s has no transport", ErrNotConnected, i.record.Phone)
	}

	queryCtx, cancel := context.WithTimeout(ctx, i.cfg.WhatsApp.GroupQueryTimeout)
	defer cancel()

	meta, err := t.QueryGroupMetadata(queryCtx, jid)
	if err != nil {
		return nil, fmt.Errorf("failed to query group metadata: %w", err)
	}

	i.groupCache.Set(jid, *meta, cache.NoExpiration)
	return meta, nil
}

// Restart marca restart manual, fecha sem logout, espera a janela de
// silêncio e reabre o transporte
func (i *Instance) Restart() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return fmt.Errorf("instance %s is stopped", i.record.Phone)
	}
	i.manualRestart = true
	t := i.transport
	i.mu.Unlock()

	i.appendLog(models.LogLevelInfo, "manual restart requested")

	if t != nil {
		t.Close()
	}

	time.Sleep(i.cfg.WhatsApp.RestartQuiescence)

	i.mu.Lock()
	// se o close chegou a ser processado, a flag já foi consumida
	flagConsumed := !i.manualRestart
	i.manualRestart = false
	i.mu.Unlock()

	// o transporte descarta eventos depois do Close; quando o close não
	// chegou ao loop, a transição de restart manual é emitida aqui
	if !flagConsumed {
		i.setStatus(models.InstanceStatusInactive, subStatusManualRestart)
	}

	return i.Start()
}

// Teardown encerra a instância: cancela reconexões, opcionalmente desloga
// no upstream e remove as credenciais do disco
func (i *Instance) Teardown(logout bool) {
	i.mu.Lock()
	i.stopped = true
	if i.reconnectTimer != nil {
		i.reconnectTimer.Stop()
		i.reconnectTimer = nil
	}
	t := i.transport
	i.transport = nil
	if i.stopLoop != nil {
		close(i.stopLoop)
		i.stopLoop = nil
	}
	i.mu.Unlock()

	if t != nil {
		if logout {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := t.Logout(ctx); err != nil {
				i.logger.Warn().Err(err).Msg("Logout failed during teardown")
			}
			cancel()
		}
		t.Close()
	}

	removeCredentials(i.cfg, i.record.Phone, i.logger)
}

// Close encerra a instância sem logout (shutdown do processo); credenciais
// permanecem no disco
func (i *Instance) Close() {
	i.mu.Lock()
	i.stopped = true
	if i.reconnectTimer != nil {
		i.reconnectTimer.Stop()
		i.reconnectTimer = nil
	}
	t := i.transport
	i.transport = nil
	if i.stopLoop != nil {
		close(i.stopLoop)
		i.stopLoop = nil
	}
	i.mu.Unlock()

	if t != nil {
		t.Close()
	}
}

func (i *Instance) appendLog(level, message string) {
	entry := &models.InstanceLog{
		InstanceID: i.record.ID,
		Level:      level,
		Message:    message,
	}
	if err := i.logs.Append(entry); err != nil {
		i.logger.Debug().Err(err).Msg("Failed to append instance log")
	}
}
