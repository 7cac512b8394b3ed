package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"comitebot/pkg/bus"
	"comitebot/pkg/channel"
	"comitebot/pkg/config"
	"comitebot/pkg/conversation"
	"comitebot/pkg/session"
)

const (
	defaultHealthHost    = "0.0.0.0"
	defaultHealthPort    = 8080
	defaultSweepInterval = time.Minute
	eventBufferSize      = 64
)

// Handler is the conversation side of the gateway.
type Handler interface {
	Handle(ctx context.Context, ev bus.InboundEvent) conversation.Outcome
}

type Option func(*Service)

// WithEvents makes the service observe lifecycle events published on b.
func WithEvents(b *bus.Bus) Option {
	return func(s *Service) { s.events = b }
}

// WithSweeper periodically drops expired sessions. interval <= 0 uses one minute.
func WithSweeper(sweeper session.Sweeper, interval time.Duration) Option {
	return func(s *Service) {
		s.sweeper = sweeper
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

type Service struct {
	cfg      config.GatewayConfig
	log      *slog.Logger
	handler  Handler
	channels []channel.Adapter

	events        *bus.Bus
	sweeper       session.Sweeper
	sweepInterval time.Duration
	now           func() time.Time

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
	outcomes      map[string]int64
	eventCounts   map[string]int64
	swept         int64
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Channels      map[string]channelState `json:"channels"`
	Outcomes      map[string]int64        `json:"outcomes,omitempty"`
	Events        map[string]int64        `json:"events,omitempty"`
	SweptSessions int64                   `json:"swept_sessions,omitempty"`
}

func NewService(cfg config.GatewayConfig, handler Handler, adapters []channel.Adapter, log *slog.Logger, opts ...Option) (*Service, error) {
	if handler == nil {
		return nil, errors.New("conversation handler is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	s := &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		handler:       handler,
		channels:      adapters,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		channelStates: channelStates,
		outcomes:      make(map[string]int64),
		eventCounts:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks until ctx is cancelled, a channel fails, or the status server
// cannot start. Cancellation is a clean shutdown and returns nil.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Background work is cancelled before Run waits for it.
	var background sync.WaitGroup
	defer background.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = s.now().UTC()
	s.mu.Unlock()

	if s.events != nil {
		// Subscribe before any adapter runs so no early event is missed.
		events, unsubscribe := s.events.SubscribeEvents(ctx, eventBufferSize)
		background.Add(1)
		go func() {
			defer background.Done()
			defer unsubscribe()
			s.observeEvents(ctx, events)
		}()
	}

	if s.sweeper != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			s.runSweeper(ctx)
		}()
	}

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		background.Add(1)
		go func() {
			defer background.Done()
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Service) handleInbound(ctx context.Context, ev bus.InboundEvent) {
	outcome := s.handler.Handle(ctx, ev)

	s.mu.Lock()
	s.outcomes[outcome.String()]++
	s.mu.Unlock()

	s.log.Debug("Event handled", "channel", ev.Channel, "user_id", ev.UserID(), "kind", string(ev.Kind), "outcome", outcome.String())
}

func (s *Service) observeEvents(ctx context.Context, events <-chan bus.Event) {
	log := s.log.With("component", "bus.events")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.eventCounts[string(event.Type)]++
			s.mu.Unlock()
			logEvent(log, event)
		}
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{
		"event_type", event.Type,
		"request_id", event.RequestID,
		"channel", event.Channel,
		"user_id", event.UserID,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	if event.Action != "" {
		attrs = append(attrs, "action", event.Action)
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch event.Type {
	case bus.EventForwardFailed, bus.EventInternalError:
		log.Error("Conversation event", append(attrs, "error", event.Error)...)
	case bus.EventSessionOpened, bus.EventMessageForwarded, bus.EventSessionCancelled,
		bus.EventValidationRejected, bus.EventUnexpectedMessage:
		log.Info("Conversation event", attrs...)
	default:
		log.Debug("Conversation event", attrs...)
	}
}

func (s *Service) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	removed, err := s.sweeper.Sweep(ctx, s.now())
	if err != nil {
		s.log.Warn("Session sweep failed", "error", err)
		return
	}
	if removed == 0 {
		return
	}

	s.mu.Lock()
	s.swept += int64(removed)
	s.mu.Unlock()
	s.log.Info("Expired sessions removed", "count", removed)
}

// Router serves the status endpoints.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	return r
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(s.now().Sub(s.startedAt).Seconds())
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Channels:      copyMap(s.channelStates),
		Outcomes:      copyMap(s.outcomes),
		Events:        copyMap(s.eventCounts),
		SweptSessions: s.swept,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}
	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
