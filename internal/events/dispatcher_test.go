package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestInMemoryDispatcherDeliversToAllSubscribers(t *testing.T) {
	d := events.NewInMemoryDispatcher()

	var calls []string
	d.Subscribe(events.EventTicketCreated, func(_ context.Context, event events.Event) error {
		calls = append(calls, "first:"+event.TicketID)
		return nil
	})
	d.Subscribe(events.EventTicketCreated, func(_ context.Context, event events.Event) error {
		calls = append(calls, "second:"+event.TicketID)
		return nil
	})
	d.Subscribe(events.EventTicketDeleted, func(_ context.Context, _ events.Event) error {
		calls = append(calls, "deleted")
		return nil
	})

	err := d.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: "t1"})
	require.NoError(t, err)
	require.Equal(t, []string{"first:t1", "second:t1"}, calls)
}

func TestInMemoryDispatcherHandlerErrorDoesNotStopDelivery(t *testing.T) {
	d := events.NewInMemoryDispatcher()

	var secondRan bool
	d.Subscribe(events.EventTicketCreated, func(_ context.Context, _ events.Event) error {
		return errors.New("boom")
	})
	d.Subscribe(events.EventTicketCreated, func(_ context.Context, _ events.Event) error {
		secondRan = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	require.True(t, secondRan)
}

func TestAsyncDispatcherPreservesPublishOrder(t *testing.T) {
	d := events.NewAsyncDispatcher(zap.NewNop(), nil, 16)

	var mu sync.Mutex
	var seen []string
	d.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, event.TicketID)
		return nil
	})

	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		require.NoError(t, d.Publish(context.Background(), events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: id,
		}))
	}
	d.Close()

	require.Equal(t, []string{"t1", "t2", "t3", "t4"}, seen)
}

func TestAsyncDispatcherCloseDrainsQueue(t *testing.T) {
	d := events.NewAsyncDispatcher(zap.NewNop(), nil, 64)

	var mu sync.Mutex
	count := 0
	d.Subscribe(events.EventTicketCommented, func(_ context.Context, _ events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketCommented}))
	}
	d.Close()

	require.Equal(t, 20, count)
}

func TestAsyncDispatcherRecoversFromPanickingHandler(t *testing.T) {
	d := events.NewAsyncDispatcher(zap.NewNop(), nil, 8)

	var mu sync.Mutex
	var delivered []string
	d.Subscribe(events.EventTicketDeleted, func(_ context.Context, _ events.Event) error {
		panic("handler blew up")
	})
	d.Subscribe(events.EventTicketDeleted, func(_ context.Context, event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, event.TicketID)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketDeleted, TicketID: "t1"}))
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketDeleted, TicketID: "t2"}))
	d.Close()

	require.Equal(t, []string{"t1", "t2"}, delivered)
}

func TestAsyncDispatcherDropsWhenQueueFull(t *testing.T) {
	// No subscribers and a tiny buffer: fill it, then verify extra publishes
	// return without blocking. The worker may drain entries concurrently, so
	// only the non-blocking property is asserted.
	d := events.NewAsyncDispatcher(zap.NewNop(), nil, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = d.Publish(context.Background(), events.Event{Type: events.EventTicketCreated})
		}
	}()

	select {
	case <-done:
	case <-testTimeout(t):
		t.Fatal("publish blocked on a full queue")
	}
	d.Close()
}

func TestAsyncDispatcherPublishAfterCloseDropsEvent(t *testing.T) {
	d := events.NewAsyncDispatcher(zap.NewNop(), nil, 8)

	var mu sync.Mutex
	count := 0
	d.Subscribe(events.EventTicketCreated, func(_ context.Context, _ events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	d.Close()

	require.NotPanics(t, func() {
		require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	})
	require.Equal(t, 1, count)
}

func testTimeout(t *testing.T) <-chan struct{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx.Done()
}
