// Package events provides the local notification fan-out consumed by
// presentation layers. Subscriptions are channels tied to a context, so a
// subscriber that goes away is removed by cancellation instead of relying on
// a manual unsubscribe call.
package events

import (
	"context"
	"sync"
)

// Kind identifies a local notification event.
type Kind string

const (
	KindRoundChanged     Kind = "round_changed"
	KindTurnPhaseChanged Kind = "turn_phase_changed"
	KindRoundComplete    Kind = "round_complete"
	KindGameComplete     Kind = "game_complete"
	KindPlayerAdded      Kind = "player_added"
	KindPlayerRemoved    Kind = "player_removed"
	KindMatchupAssigned  Kind = "matchup_assigned"
	KindHandDrawn        Kind = "hand_drawn"
	KindStartupTimeout   Kind = "startup_timeout"
)

// Event is a local notification delivered to every live subscriber.
type Event struct {
	Kind    Kind
	Payload any
}

type RoundChangedPayload struct {
	Round int
}

type TurnPhaseChangedPayload struct {
	PlayerID     string
	PlayerActing bool
	TurnCount    int
}

type RoundCompletePayload struct {
	Round int
}

type GameCompletePayload struct {
	WinnerID string
	Score    int
}

type PlayerAddedPayload struct {
	PlayerID    string
	DisplayName string
}

type PlayerRemovedPayload struct {
	PlayerID string
}

type MatchupAssignedPayload struct {
	PlayerID   string
	OpponentID string
}

type HandDrawnPayload struct {
	PlayerID string
	Count    int
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and the drop counter advances, so a
// stalled UI can never stall the match loop.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	buffer  int
	dropped uint64
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns a channel that receives events until ctx is cancelled,
// at which point the channel is closed and the subscription removed.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

// Dropped reports how many deliveries were skipped due to full buffers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
