package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"comitebot/pkg/bus"
	"comitebot/pkg/channel"
	"comitebot/pkg/config"
	"comitebot/pkg/markdown"
	"comitebot/pkg/routing"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
)

// TransportError is returned by Send when the message could not be delivered.
type TransportError struct {
	Kind     channel.ErrorKind
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("forward failed (%s)", e.Kind)
	}
	return fmt.Sprintf("forward failed (%s) after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Forwarder delivers validated messages to a destination topic.
type Forwarder struct {
	messenger   channel.Messenger
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error
	log         *slog.Logger
}

func New(messenger channel.Messenger, cfg config.ForwardConfig, log *slog.Logger) *Forwarder {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Forwarder{
		messenger:   messenger,
		timeout:     timeout,
		maxAttempts: attempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       sleepContext,
		log:         log.With("component", "forward"),
	}
}

// Send delivers body to dest. Each attempt is bounded by the configured timeout;
// only rate limits and unreachable errors are retried, and only when more than
// one attempt is configured.
func (f *Forwarder) Send(ctx context.Context, dest routing.Destination, body string) error {
	msg := bus.OutboundMessage{
		ChatID:    dest.GroupID,
		TopicID:   dest.TopicID,
		Text:      body,
		ParseMode: markdown.ModeV2,
	}

	var lastErr *TransportError
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		err := f.sendOnce(ctx, msg)
		if err == nil {
			if attempt > 1 {
				f.log.Info("Forward succeeded after retry", "group_id", dest.GroupID, "topic_id", dest.TopicID, "attempt", attempt)
			}
			return nil
		}

		lastErr = &TransportError{Kind: classify(err), Attempts: attempt, Err: err}
		if attempt == f.maxAttempts || !retryable(lastErr.Kind) {
			break
		}

		delay := f.backoff(attempt, err)
		f.log.Warn("Forward attempt failed, retrying",
			"group_id", dest.GroupID,
			"topic_id", dest.TopicID,
			"attempt", attempt,
			"kind", lastErr.Kind,
			"delay", delay,
			"error", err,
		)
		if err := f.sleep(ctx, delay); err != nil {
			break
		}
	}

	return lastErr
}

func (f *Forwarder) sendOnce(ctx context.Context, msg bus.OutboundMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	_, err := f.messenger.SendMessage(sendCtx, msg)
	if err == nil {
		return nil
	}
	if errors.Is(sendCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func (f *Forwarder) backoff(attempt int, err error) time.Duration {
	var delivery *channel.DeliveryError
	if errors.As(err, &delivery) && delivery.RetryAfter > 0 {
		if delivery.RetryAfter > f.maxDelay {
			return f.maxDelay
		}
		return delivery.RetryAfter
	}

	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= f.maxDelay {
			return f.maxDelay
		}
	}
	return delay
}

func classify(err error) channel.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return channel.ErrorUnreachable
	}
	return channel.KindOf(err)
}

func retryable(kind channel.ErrorKind) bool {
	return kind == channel.ErrorRateLimited || kind == channel.ErrorUnreachable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
