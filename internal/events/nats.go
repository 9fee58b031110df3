package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subject returns the NATS subject carrying events of one session.
func Subject(sessionID string) string {
	return "sessions." + sessionID + ".events"
}

// NATSPublisher mirrors session events onto NATS.
type NATSPublisher struct {
	log *slog.Logger
	nc  *nats.Conn
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(log *slog.Logger, nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{log: log, nc: nc}
}

// ConnectNATS dials url with the connection name used by this service.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("pdf-chat"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	if ev.SessionID == "" {
		return errors.New("session id required")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(Subject(ev.SessionID), body); err != nil {
		return fmt.Errorf("nats publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close drains the connection so buffered events are flushed.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.log.Warn("nats drain failed", "err", err)
		p.nc.Close()
		return err
	}
	return nil
}
