package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []schema.ChangeEvent
	gate   chan struct{}
}

func (o *recordingObserver) Notify(event schema.ChangeEvent) {
	if o.gate != nil {
		<-o.gate
	}
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
}

func (o *recordingObserver) snapshot() []schema.ChangeEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]schema.ChangeEvent, len(o.events))
	copy(out, o.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestPublishPreservesPerEntityOrder(t *testing.T) {
	n := NewNotifier(64)
	defer n.Close()

	obs := &recordingObserver{}
	n.Register(context.Background(), obs)

	n.Publish(schema.EntityPosition, "pos-1", schema.ChangeCreated)
	n.Publish(schema.EntityPosition, "pos-1", schema.ChangeUpdated)
	n.Publish(schema.EntityPosition, "pos-1", schema.ChangeUpdated)

	waitFor(t, func() bool { return len(obs.snapshot()) == 3 })

	events := obs.snapshot()
	require.Equal(t, schema.ChangeCreated, events[0].Change)
	require.Equal(t, schema.ChangeUpdated, events[1].Change)
	require.Equal(t, schema.ChangeUpdated, events[2].Change)
	for _, event := range events {
		assert.Equal(t, "pos-1", event.EntityID)
		assert.Equal(t, schema.EntityPosition, event.Kind)
	}
}

func TestPublishFanOutToAllObservers(t *testing.T) {
	n := NewNotifier(8)
	defer n.Close()

	a, b := &recordingObserver{}, &recordingObserver{}
	n.Register(context.Background(), a)
	n.Register(context.Background(), b)

	n.Publish(schema.EntityAlert, "alert-1", schema.ChangeCreated)

	waitFor(t, func() bool { return len(a.snapshot()) == 1 && len(b.snapshot()) == 1 })
}

func TestPublishNeverBlocksOnSlowObserver(t *testing.T) {
	n := NewNotifier(1)
	defer n.Close()

	slow := &recordingObserver{gate: make(chan struct{})}
	n.Register(context.Background(), slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			n.Publish(schema.EntityPosition, "pos-1", schema.ChangeUpdated)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow observer")
	}

	close(slow.gate)
	assert.NotZero(t, n.Dropped())
}

func TestOverflowKeepsNewestEvent(t *testing.T) {
	n := NewNotifier(1)
	defer n.Close()

	slow := &recordingObserver{gate: make(chan struct{})}
	n.Register(context.Background(), slow)

	n.Publish(schema.EntityPosition, "pos-1", schema.ChangeCreated)
	// Wait for the dispatcher to pick pos-1 up and park in Notify so the
	// queue is empty again.
	waitFor(t, func() bool { return len(n.subs[0].ch) == 0 })

	n.Publish(schema.EntityPosition, "pos-2", schema.ChangeUpdated)
	n.Publish(schema.EntityPosition, "pos-3", schema.ChangeUpdated)

	close(slow.gate)
	waitFor(t, func() bool { return len(slow.snapshot()) == 2 })

	events := slow.snapshot()
	require.Equal(t, "pos-1", events[0].EntityID)
	require.Equal(t, "pos-3", events[1].EntityID)
	assert.EqualValues(t, 1, n.Dropped())
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	n := NewNotifier(8)
	obs := &recordingObserver{}
	n.Register(context.Background(), obs)
	n.Close()

	n.Publish(schema.EntityAlert, "alert-1", schema.ChangeCreated)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, obs.snapshot())
}
