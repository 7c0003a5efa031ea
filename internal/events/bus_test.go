package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := bus.Subscribe(ctx)
	b := bus.Subscribe(ctx)

	bus.Publish(Event{Kind: KindRoundChanged, Payload: RoundChangedPayload{Round: 2}})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			require.Equal(t, KindRoundChanged, ev.Kind)
			require.Equal(t, 2, ev.Payload.(RoundChangedPayload).Round)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed after cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after cancellation")
	}

	// Publishing after removal must not panic or deliver.
	bus.Publish(Event{Kind: KindRoundComplete})
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx)
	bus.Publish(Event{Kind: KindPlayerAdded})
	bus.Publish(Event{Kind: KindPlayerRemoved}) // buffer full, dropped

	require.Equal(t, uint64(1), bus.Dropped())
	ev := <-ch
	require.Equal(t, KindPlayerAdded, ev.Kind)
}
