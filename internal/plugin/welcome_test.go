package plugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipe/zapgate/internal/transport"
)

type recordingSender struct {
	mu    sync.Mutex
	sends []sentText
}

type sentText struct {
	jid  string
	text string
}

func (s *recordingSender) SendText(ctx context.Context, jid, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sentText{jid: jid, text: text})
	return "msg-id", nil
}

func (s *recordingSender) sent() []sentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentText, len(s.sends))
	copy(out, s.sends)
	return out
}

func groupEvent(action string, participants ...string) *Event {
	return &Event{
		Phone: "5511999887766",
		Kind:  KindGroupParticipants,
		Group: &transport.GroupParticipantsEvent{
			GroupJID:     "123456@g.us",
			Action:       action,
			Participants: participants,
			Timestamp:    time.Now(),
		},
	}
}

func waitForSends(t *testing.T, sender *recordingSender, want int) []sentText {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if sends := sender.sent(); len(sends) >= want {
			return sends
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d sends, got %d", want, len(sender.sent()))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWelcomeGreetsAfterDelay(t *testing.T) {
	p := NewWelcomePluginWithDelay(50 * time.Millisecond)
	sender := &recordingSender{}

	evt := groupEvent("add", "111@s.whatsapp.net")
	evt.Sender = sender
	require.NoError(t, p.Handle(context.Background(), evt))

	sends := waitForSends(t, sender, 1)
	assert.Equal(t, "123456@g.us", sends[0].jid)
	assert.Contains(t, sends[0].text, "@111")
}

func TestWelcomeBatchesArrivals(t *testing.T) {
	p := NewWelcomePluginWithDelay(80 * time.Millisecond)
	sender := &recordingSender{}

	first := groupEvent("add", "111@s.whatsapp.net")
	first.Sender = sender
	require.NoError(t, p.Handle(context.Background(), first))

	time.Sleep(20 * time.Millisecond)

	second := groupEvent("add", "222@s.whatsapp.net")
	second.Sender = sender
	require.NoError(t, p.Handle(context.Background(), second))

	sends := waitForSends(t, sender, 1)
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].text, "@111")
	assert.Contains(t, sends[0].text, "@222")

	// nenhuma segunda saudação deve chegar
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, sender.sent(), 1)
}

func TestWelcomeKeepsInstancesIndependent(t *testing.T) {
	p := NewWelcomePluginWithDelay(50 * time.Millisecond)
	senderA := &recordingSender{}
	senderB := &recordingSender{}

	// duas instâncias no mesmo grupo: cada uma saúda o próprio recém-chegado
	evtA := groupEvent("add", "111@s.whatsapp.net")
	evtA.Phone = "5511000000001"
	evtA.Sender = senderA
	require.NoError(t, p.Handle(context.Background(), evtA))

	evtB := groupEvent("add", "222@s.whatsapp.net")
	evtB.Phone = "5511000000002"
	evtB.Sender = senderB
	require.NoError(t, p.Handle(context.Background(), evtB))

	sendsA := waitForSends(t, senderA, 1)
	sendsB := waitForSends(t, senderB, 1)

	require.Len(t, sendsA, 1)
	assert.Contains(t, sendsA[0].text, "@111")
	assert.NotContains(t, sendsA[0].text, "@222")

	require.Len(t, sendsB, 1)
	assert.Contains(t, sendsB[0].text, "@222")
	assert.NotContains(t, sendsB[0].text, "@111")
}

func TestWelcomeCancelledWhenAllLeave(t *testing.T) {
	p := NewWelcomePluginWithDelay(60 * time.Millisecond)
	sender := &recordingSender{}

	join := groupEvent("add", "111@s.whatsapp.net")
	join.Sender = sender
	require.NoError(t, p.Handle(context.Background(), join))

	leave := groupEvent("remove", "111@s.whatsapp.net")
	require.NoError(t, p.Handle(context.Background(), leave))

	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, sender.sent())
}

func TestWelcomePartialLeaveStillGreetsRemaining(t *testing.T) {
	p := NewWelcomePluginWithDelay(60 * time.Millisecond)
	sender := &recordingSender{}

	join := groupEvent("add", "111@s.whatsapp.net", "222@s.whatsapp.net")
	join.Sender = sender
	require.NoError(t, p.Handle(context.Background(), join))

	leave := groupEvent("remove", "111@s.whatsapp.net")
	require.NoError(t, p.Handle(context.Background(), leave))

	sends := waitForSends(t, sender, 1)
	assert.NotContains(t, sends[0].text, "@111")
	assert.Contains(t, sends[0].text, "@222")
}

func TestWelcomeIgnoresMessages(t *testing.T) {
	p := NewWelcomePluginWithDelay(10 * time.Millisecond)
	sender := &recordingSender{}

	evt := &Event{Kind: KindMessage, Sender: sender}
	require.NoError(t, p.Handle(context.Background(), evt))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sender.sent())
}
