package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"comitebot/pkg/bus"
	"comitebot/pkg/channel"
	"comitebot/pkg/config"
	"comitebot/pkg/conversation"
)

type stubHandler struct {
	mu      sync.Mutex
	events  []bus.InboundEvent
	outcome conversation.Outcome
}

func (h *stubHandler) Handle(_ context.Context, ev bus.InboundEvent) conversation.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.outcome
}

type stubAdapter struct{ name string }

func (a stubAdapter) Name() string { return a.name }

func (a stubAdapter) Run(ctx context.Context, _ channel.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeSweeper struct {
	mu      sync.Mutex
	calls   int
	removed int
	err     error
}

func (f *fakeSweeper) Sweep(context.Context, time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.removed, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()

	svc, err := NewService(config.GatewayConfig{}, &stubHandler{outcome: conversation.OutcomeForwarded}, []channel.Adapter{stubAdapter{name: "telegram"}}, discardLogger(), opts...)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresHandlerAndAdapters(t *testing.T) {
	t.Parallel()

	_, err := NewService(config.GatewayConfig{}, nil, []channel.Adapter{stubAdapter{name: "telegram"}}, nil)
	require.Error(t, err)

	_, err = NewService(config.GatewayConfig{}, &stubHandler{}, nil, nil)
	require.Error(t, err)
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	require.False(t, svc.isReady())

	svc.setChannelState("telegram", channelState{Running: true})
	require.True(t, svc.isReady())

	svc.setChannelState("telegram", channelState{Running: false, Error: "boom"})
	require.False(t, svc.isReady())
}

func TestRouterReportsStatus(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.startedAt = started
	svc.now = func() time.Time { return started.Add(90 * time.Second) }

	router := svc.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	svc.setChannelState("telegram", channelState{Running: true})
	svc.handleInbound(context.Background(), bus.InboundEvent{Kind: bus.KindText, Sender: bus.Sender{ID: 1}})

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "ready", payload.Status)
	require.Equal(t, int64(90), payload.UptimeSeconds)
	require.True(t, payload.Channels["telegram"].Running)
	require.Equal(t, int64(1), payload.Outcomes["forwarded"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestObserveEventsCountsByType(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	events := make(chan bus.Event, 3)
	events <- bus.Event{Type: bus.EventSessionOpened}
	events <- bus.Event{Type: bus.EventMessageForwarded}
	events <- bus.Event{Type: bus.EventSessionOpened}
	close(events)

	svc.observeEvents(context.Background(), events)

	status := svc.currentStatus("ok")
	require.Equal(t, int64(2), status.Events[string(bus.EventSessionOpened)])
	require.Equal(t, int64(1), status.Events[string(bus.EventMessageForwarded)])
}

func TestLogEventLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logEvent(log, bus.Event{Type: bus.EventSessionOpened, RequestID: "1", UserID: 7, Action: "consulta"})
	require.Contains(t, buf.String(), `"level":"INFO"`)
	require.Contains(t, buf.String(), `"action":"consulta"`)

	buf.Reset()
	logEvent(log, bus.Event{Type: bus.EventForwardFailed, RequestID: "2", Error: "boom"})
	require.Contains(t, buf.String(), `"level":"ERROR"`)
	require.Contains(t, buf.String(), `"error":"boom"`)

	buf.Reset()
	logEvent(log, bus.Event{Type: bus.EventType("something_new"), RequestID: "3"})
	require.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestSweepOnceAccumulatesRemovedSessions(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{removed: 3}
	svc := newTestService(t, WithSweeper(sweeper, 0))
	require.Equal(t, defaultSweepInterval, svc.sweepInterval)

	svc.sweepOnce(context.Background())
	svc.sweepOnce(context.Background())
	require.Equal(t, int64(6), svc.currentStatus("ok").SweptSessions)

	sweeper.err = errors.New("db down")
	svc.sweepOnce(context.Background())
	require.Equal(t, int64(6), svc.currentStatus("ok").SweptSessions)
	require.Equal(t, 3, sweeper.calls)
}
