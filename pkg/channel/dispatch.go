package channel

import (
	"context"
	"sync"

	"comitebot/pkg/bus"
)

// Dispatcher runs a Handler with one FIFO worker per user: events from the same
// user are handled in receipt order, events from different users run in parallel.
// Idle workers exit, so only users with pending events hold a goroutine.
type Dispatcher struct {
	handler Handler

	mu      sync.Mutex
	queues  map[int64][]bus.InboundEvent
	pending sync.WaitGroup
}

func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		queues:  make(map[int64][]bus.InboundEvent),
	}
}

// Dispatch enqueues event behind any earlier events of the same user.
func (d *Dispatcher) Dispatch(ctx context.Context, event bus.InboundEvent) {
	userID := event.UserID()

	d.mu.Lock()
	defer d.mu.Unlock()

	queue, running := d.queues[userID]
	d.queues[userID] = append(queue, event)
	if running {
		return
	}

	d.pending.Add(1)
	go d.work(ctx, userID)
}

// Wait blocks until every queued event has been handled.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

func (d *Dispatcher) work(ctx context.Context, userID int64) {
	defer d.pending.Done()

	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		event := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.handler(ctx, event)
	}
}
