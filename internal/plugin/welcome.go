package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felipe/zapgate/internal/logger"
)

const (
	// WelcomePluginName identifica o plugin de boas-vindas
	WelcomePluginName = "welcome"

	defaultWelcomeDelay = 5 * time.Minute
)

// pendingGroup acumula participantes recém-chegados de um grupo até o
// timer disparar
type pendingGroup struct {
	groupJID string
	members  map[string]struct{}
	timer    *time.Timer
	sender   TextSender
}

// WelcomePlugin agrupa entradas em grupos e envia uma única saudação por
// grupo depois de um período de acúmulo. Saídas antes do disparo removem o
// participante da saudação. O plugin é compartilhado entre instâncias, por
// isso o estado pendente é chaveado por instância e grupo: duas instâncias
// no mesmo grupo acumulam e saúdam de forma independente.
type WelcomePlugin struct {
	mu      sync.Mutex
	pending map[string]*pendingGroup
	delay   time.Duration
	logger  *logger.ComponentLogger
}

// NewWelcomePlugin cria o plugin com o atraso padrão de cinco minutos
func NewWelcomePlugin() *WelcomePlugin {
	return NewWelcomePluginWithDelay(defaultWelcomeDelay)
}

// NewWelcomePluginWithDelay cria o plugin com atraso customizado
func NewWelcomePluginWithDelay(delay time.Duration) *WelcomePlugin {
	return &WelcomePlugin{
		pending: make(map[string]*pendingGroup),
		delay:   delay,
		logger:  logger.ForComponent("plugin_welcome"),
	}
}

func (p *WelcomePlugin) Name() string { return WelcomePluginName }

func (p *WelcomePlugin) Description() string {
	return "Greets new group participants with a single delayed message"
}

func (p *WelcomePlugin) DefaultEnabled() bool { return false }

// Handle processa mudanças de participantes; outros eventos são ignorados
func (p *WelcomePlugin) Handle(ctx context.Context, event *Event) error {
	if event.Kind != KindGroupParticipants || event.Group == nil {
		return nil
	}

	switch event.Group.Action {
	case "add":
		p.enqueue(event.Phone, event.Group.GroupJID, event.Group.Participants, event.Sender)
	case "remove":
		p.withdraw(event.Phone, event.Group.GroupJID, event.Group.Participants)
	}

	return nil
}

// pendingKey chaveia o estado pendente por instância e grupo
func pendingKey(phone, groupJID string) string {
	return phone + "|" + groupJID
}

// enqueue adiciona os participantes ao conjunto pendente da instância para o
// grupo e (re)arma o timer; chegadas em sequência compartilham uma saudação
func (p *WelcomePlugin) enqueue(phone, groupJID string, participants []string, sender TextSender) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pendingKey(phone, groupJID)
	group, exists := p.pending[key]
	if !exists {
		group = &pendingGroup{groupJID: groupJID, members: make(map[string]struct{})}
		p.pending[key] = group
	}

	for _, participant := range participants {
		group.members[participant] = struct{}{}
	}
	group.sender = sender

	if group.timer != nil {
		group.timer.Stop()
	}
	group.timer = time.AfterFunc(p.delay, func() {
		p.fire(key)
	})

	p.logger.Debug().
		Str("instance", phone).
		Str("group", groupJID).
		Int("pending", len(group.members)).
		Msg("Welcome timer armed")
}

// withdraw remove participantes que saíram antes da saudação; o timer é
// cancelado quando o conjunto esvazia
func (p *WelcomePlugin) withdraw(phone, groupJID string, participants []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := pendingKey(phone, groupJID)
	group, exists := p.pending[key]
	if !exists {
		return
	}

	for _, participant := range participants {
		delete(group.members, participant)
	}

	if len(group.members) == 0 {
		if group.timer != nil {
			group.timer.Stop()
		}
		delete(p.pending, key)
		p.logger.Debug().Str("instance", phone).Str("group", groupJID).Msg("Welcome cancelled, all arrivals left")
	}
}

// fire envia a saudação acumulada e limpa o estado pendente
func (p *WelcomePlugin) fire(key string) {
	p.mu.Lock()
	group, exists := p.pending[key]
	if !exists || len(group.members) == 0 {
		delete(p.pending, key)
		p.mu.Unlock()
		return
	}
	members := make([]string, 0, len(group.members))
	for member := range group.members {
		members = append(members, member)
	}
	sort.Strings(members)
	groupJID := group.groupJID
	sender := group.sender
	delete(p.pending, key)
	p.mu.Unlock()

	text := buildWelcomeText(members)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := sender.SendText(ctx, groupJID, text); err != nil {
		p.logger.Error().Err(err).Str("group", groupJID).Msg("Failed to send welcome message")
		return
	}

	p.logger.Info().Str("group", groupJID).Int("greeted", len(members)).Msg("Welcome message sent")
}

func buildWelcomeText(members []string) string {
	names := make([]string, 0, len(members))
	for _, member := range members {
		name := member
		if at := strings.Index(member, "@"); at > 0 {
			name = member[:at]
		}
		names = append(names, "@"+name)
	}
	return fmt.Sprintf("Welcome %s! 👋", strings.Join(names, ", "))
}
