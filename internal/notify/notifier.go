package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/schema"

	"github.com/yanun0323/logs"
)

// Observer consumes change events. Notify is invoked from a single
// dispatch goroutine per observer, so successive changes to the same
// entity arrive in the order they occurred.
type Observer interface {
	Notify(event schema.ChangeEvent)
}

// Notifier fans entity-mutation events out to registered observers.
// Publishing never blocks the caller; when an observer's queue is full
// the oldest queued event is evicted and counted so the newest re-fetch
// trigger always survives. Observers treat events as re-fetch triggers,
// so an evicted intermediate never shows a newer state being replaced
// by an older one.
type Notifier struct {
	mu        sync.Mutex
	subs      []*subscription
	queueSize int
	dropped   atomic.Uint64
	closed    atomic.Bool
}

type subscription struct {
	observer Observer
	ch       chan schema.ChangeEvent
	done     chan struct{}
}

// NewNotifier allocates a notifier with the given per-observer queue capacity.
func NewNotifier(queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Notifier{queueSize: queueSize}
}

// Register attaches an observer and starts its dispatch goroutine.
func (n *Notifier) Register(ctx context.Context, observer Observer) {
	if n == nil || observer == nil {
		return
	}
	sub := &subscription{
		observer: observer,
		ch:       make(chan schema.ChangeEvent, n.queueSize),
		done:     make(chan struct{}),
	}

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	go sub.run(ctx)
}

// Publish enqueues a change event for every observer without blocking.
func (n *Notifier) Publish(kind schema.EntityKind, entityID string, change schema.ChangeType) {
	if n == nil || n.closed.Load() {
		return
	}
	event := schema.ChangeEvent{
		Kind:     kind,
		EntityID: entityID,
		Change:   change,
		At:       time.Now().UTC(),
	}

	n.mu.Lock()
	subs := n.subs
	n.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		// Queue full: evict the oldest event so the latest trigger for
		// the entity is the one observers eventually see.
		select {
		case <-sub.ch:
			if n.dropped.Add(1)%64 == 1 {
				logs.Warnf("notify queue full, evicting oldest for %s/%s", kind, entityID)
			}
		default:
		}
		select {
		case sub.ch <- event:
		default:
			n.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded due to full queues.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close stops accepting events and drains observer queues.
func (n *Notifier) Close() {
	if !n.closed.CompareAndSwap(false, true) {
		return
	}
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
		<-sub.done
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.ch:
			if !ok {
				return
			}
			s.observer.Notify(event)
		}
	}
}
