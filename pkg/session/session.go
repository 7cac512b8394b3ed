package session

import (
	"context"
	"time"

	"comitebot/pkg/action"
)

// Session is one in-flight submission: the user pressed an entry button and the
// bot is waiting for their single text reply.
type Session struct {
	UserID    int64       `json:"user_id"`
	Action    action.Type `json:"action"`
	CreatedAt time.Time   `json:"created_at"`
}

// Expired reports whether s is older than ttl. A zero ttl never expires.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) >= ttl
}

// Store owns session lifetime. Each user has at most one session.
//
// Open replaces any previous session for the user. Take removes and returns the
// session in one step, so a session is consumed at most once; a missing or
// expired session is reported as found=false, not as an error. Clear reports
// whether a session existed.
type Store interface {
	Open(ctx context.Context, userID int64, typ action.Type) (Session, error)
	Take(ctx context.Context, userID int64) (Session, bool, error)
	Clear(ctx context.Context, userID int64) (bool, error)
	Close() error
}

// Sweeper is implemented by stores that need expired rows removed by a
// background loop. DynamoDB expires rows itself through the table TTL.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Option configures any Store implementation.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL expires sessions older than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
