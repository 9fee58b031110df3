package events

import (
	"context"
	"log/slog"
	"sync"
)

const subscriberBuffer = 32

// Broker fans events out to in-process subscribers of one session.
// A subscriber whose buffer is full misses the event; the session never
// waits on it.
type Broker struct {
	log  *slog.Logger
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan Event
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{log: log, subs: make(map[string]map[int]chan Event)}
}

// Subscribe returns a channel of events for sessionID and a cancel func.
// The channel is closed by cancel or after the session_closed event.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan Event)
	}
	b.subs[sessionID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[sessionID][id]; ok {
				delete(b.subs[sessionID], id)
				if len(b.subs[sessionID]) == 0 {
					delete(b.subs, sessionID)
				}
				close(c)
			}
		})
	}
	return ch, cancel
}

func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			b.log.Warn("dropping event for slow subscriber", "session_id", ev.SessionID, "type", ev.Type)
		}
	}
	if ev.Type == TypeSessionClosed {
		for _, ch := range b.subs[ev.SessionID] {
			close(ch)
		}
		delete(b.subs, ev.SessionID)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for sessionID.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
