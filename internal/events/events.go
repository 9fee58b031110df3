package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pdf-chat/internal/retry"
)

// Type enumerates session notifications.
type Type string

const (
	TypeDocumentLoaded Type = "document_loaded"
	TypeTurnAppended   Type = "turn_appended"
	TypeSessionClosed  Type = "session_closed"
)

// Turn is the wire form of one conversation turn.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Document describes the loaded document without its text.
type Document struct {
	Name   string `json:"name"`
	Pages  int    `json:"pages"`
	Length int    `json:"length"`
}

// Event is a state change of one session. Turns is the conversation length
// after the change.
type Event struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Type      Type      `json:"type"`
	Turn      *Turn     `json:"turn,omitempty"`
	Document  *Document `json:"document,omitempty"`
	Turns     int       `json:"turns"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Implementations must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type multi []Publisher

// Multi fans an event out to every publisher and joins their errors.
func Multi(pubs ...Publisher) Publisher {
	var out multi
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, p Publisher, ev Event, attempts int, base time.Duration) error {
	return retry.Do(ctx, attempts, base, 0, func(ctx context.Context) error {
		return p.Publish(ctx, ev)
	})
}

// Retrying wraps p so every Publish goes through PublishWithRetry.
type Retrying struct {
	Next     Publisher
	Attempts int
	Base     time.Duration
}

func (r Retrying) Publish(ctx context.Context, ev Event) error {
	return PublishWithRetry(ctx, r.Next, ev, r.Attempts, r.Base)
}

// Stamp fills the ID and timestamp of ev when unset.
func Stamp(ev Event) Event {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev
}
