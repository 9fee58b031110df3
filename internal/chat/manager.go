package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-chat/internal/events"
	"pdf-chat/internal/llm"
)

// Manager owns every live session. Sessions share nothing but the model
// client and the publisher.
type Manager struct {
	llm     llm.Client
	pub     events.Publisher
	log     *slog.Logger
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty manager. idleTTL <= 0 disables reaping.
func NewManager(client llm.Client, pub events.Publisher, log *slog.Logger, idleTTL time.Duration) *Manager {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		llm:      client,
		pub:      pub,
		log:      log,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a fresh id.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.llm, m.pub, m.log)
	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.log.Info("session created", "session_id", s.id, "active", n)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close destroys the session, dropping its document and conversation.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes sessions idle for longer than the idle TTL as of now. Busy
// sessions are left alone. It returns how many were closed.
func (m *Manager) Reap(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		last, busy := s.idleSince()
		if !busy && now.Sub(last) > m.idleTTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.log.Info("reaped idle sessions", "count", len(expired), "active", m.Len())
	}
	return len(expired)
}

// Run reaps every interval until ctx ends, then closes all sessions.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case now := <-ticker.C:
			m.Reap(now)
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
