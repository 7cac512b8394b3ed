package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"comitebot/pkg/action"
	"comitebot/pkg/bus"
	"comitebot/pkg/channel"
	"comitebot/pkg/config"
	"comitebot/pkg/conversation"
	"comitebot/pkg/forward"
	"comitebot/pkg/routing"
	"comitebot/pkg/session"
)

const (
	e2eSourceGroup   = int64(-1001111111111)
	e2eExternalGroup = int64(-1002222222222)
)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []bus.OutboundMessage
}

func (m *recordingMessenger) SendMessage(_ context.Context, msg bus.OutboundMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return len(m.sent), nil
}

func (m *recordingMessenger) AnswerCallback(context.Context, string, string) error {
	return nil
}

func (m *recordingMessenger) sentTo(chatID int64) []bus.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bus.OutboundMessage
	for _, msg := range m.sent {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

type scriptedAdapter struct {
	name    string
	inbound []bus.InboundEvent
	done    chan struct{}
}

func (a *scriptedAdapter) Name() string {
	return a.name
}

func (a *scriptedAdapter) Run(ctx context.Context, handler channel.Handler) error {
	for _, ev := range a.inbound {
		handler(ctx, ev)
	}

	close(a.done)

	<-ctx.Done()
	return nil
}

func e2eController(t *testing.T, messenger *recordingMessenger, events *bus.Bus) *conversation.Controller {
	t.Helper()

	routes := routing.NewTable(map[action.Type]routing.Destination{
		action.Query:      {GroupID: e2eExternalGroup, TopicID: 20},
		action.Suggestion: {GroupID: e2eExternalGroup, TopicID: 21},
	})
	forwarder := forward.New(messenger, config.ForwardConfig{Timeout: time.Second, MaxAttempts: 1}, discardLogger())

	ctrl, err := conversation.New(session.NewMemoryStore(), routes, forwarder, messenger, events, conversation.Settings{
		BotUsername:   "ComiteBot",
		SourceGroupID: e2eSourceGroup,
		EntryTopics:   map[action.Type]int{action.Query: 10, action.Suggestion: 11},
	}, discardLogger())
	require.NoError(t, err)
	return ctrl
}

func userEvents(userID int64, entry string, text string) []bus.InboundEvent {
	sender := bus.Sender{ID: userID, FirstName: "Ana", Username: fmt.Sprintf("user%d", userID)}
	return []bus.InboundEvent{
		{Kind: bus.KindCallback, Channel: "telegram", Sender: sender, ChatID: e2eSourceGroup, ChatType: "supergroup", CallbackID: "cb", Data: entry},
		{Kind: bus.KindText, Channel: "telegram", Sender: sender, ChatID: userID, ChatType: bus.ChatTypePrivate, Text: text},
	}
}

func TestGatewayServiceRunE2EForwardsSubmissions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := bus.New()
	defer events.Close()

	messenger := &recordingMessenger{}
	ctrl := e2eController(t, messenger, events)

	inbound := userEvents(100, "iniciar_consulta", "Quisiera saber cuándo se publica el calendario laboral")
	inbound = append(inbound, userEvents(200, "iniciar_sugerencia", "Propongo ampliar el horario del comedor en verano")...)
	inbound = append(inbound, bus.InboundEvent{
		Kind: bus.KindText, Channel: "telegram", Sender: bus.Sender{ID: 300}, ChatID: 300, ChatType: bus.ChatTypePrivate, Text: "hola, ¿alguien me lee?",
	})

	adapter := &scriptedAdapter{name: "telegram", inbound: inbound, done: make(chan struct{})}
	port := freeTCPPort(t)

	svc, err := NewService(config.GatewayConfig{Host: "127.0.0.1", Port: port}, ctrl, []channel.Adapter{adapter}, discardLogger(), WithEvents(events))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	select {
	case <-adapter.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for adapter scripted events")
	}

	forwarded := messenger.sentTo(e2eExternalGroup)
	require.Len(t, forwarded, 2)
	require.Equal(t, 20, forwarded[0].TopicID)
	require.Contains(t, forwarded[0].Text, "calendario laboral")
	require.Equal(t, 21, forwarded[1].TopicID)
	require.Contains(t, forwarded[1].Text, "comedor")

	require.Len(t, messenger.sentTo(300), 1, "unexpected text gets exactly one guidance reply")

	readyURL := fmt.Sprintf("http://127.0.0.1:%d/readyz", port)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	require.Eventually(t, func() bool {
		status := fetchStatus(t, readyURL)
		return status.Events[string(bus.EventMessageForwarded)] == 2 &&
			status.Events[string(bus.EventUnexpectedMessage)] == 1
	}, 2*time.Second, 25*time.Millisecond)

	status := fetchStatus(t, readyURL)
	require.Equal(t, int64(2), status.Outcomes["prompted"])
	require.Equal(t, int64(2), status.Outcomes["forwarded"])
	require.Equal(t, int64(1), status.Outcomes["unexpected"])

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to exit")
	}
}

type failingAdapter struct{}

func (failingAdapter) Name() string { return "telegram" }

func (failingAdapter) Run(context.Context, channel.Handler) error {
	return fmt.Errorf("polling rejected: unauthorized")
}

func TestGatewayServiceRunReturnsChannelFailure(t *testing.T) {
	svc, err := NewService(config.GatewayConfig{Host: "127.0.0.1", Port: freeTCPPort(t)}, &stubHandler{}, []channel.Adapter{failingAdapter{}}, discardLogger())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(context.Background())
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
		require.True(t, strings.Contains(err.Error(), "run telegram channel"))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to fail")
	}

	state := svc.currentStatus("x").Channels["telegram"]
	require.False(t, state.Running)
	require.Contains(t, state.Error, "unauthorized")
}

func fetchStatus(t *testing.T, url string) statusResponse {
	t.Helper()

	response, err := http.Get(url)
	require.NoError(t, err)
	defer response.Body.Close()

	var payload statusResponse
	require.NoError(t, json.NewDecoder(response.Body).Decode(&payload))
	return payload
}

func waitHTTPStatus(t *testing.T, url string, timeout time.Duration) int {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		response, err := http.Get(url)
		if err == nil {
			statusCode := response.StatusCode
			require.NoError(t, response.Body.Close())
			return statusCode
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %v", url, err)
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
