package chat

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"pdf-chat/internal/events"
	"pdf-chat/internal/llm"
	"pdf-chat/internal/pdftext"
)

const publishTimeout = 5 * time.Second

// State is the lifecycle position of a session.
type State int

const (
	StateIdle State = iota
	StateDocumentLoaded
	StateAwaitingAnswer
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDocumentLoaded:
		return "document_loaded"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Document is the extracted text of one upload. Text is "" for a zero-page
// document.
type Document struct {
	Name     string
	Digest   string
	Text     string
	Pages    int
	LoadedAt time.Time
}

// DocumentInfo describes a document without its text.
type DocumentInfo struct {
	Name     string    `json:"name"`
	Digest   string    `json:"digest"`
	Pages    int       `json:"pages"`
	Length   int       `json:"length"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (d *Document) info() *DocumentInfo {
	if d == nil {
		return nil
	}
	return &DocumentInfo{Name: d.Name, Digest: d.Digest, Pages: d.Pages, Length: len(d.Text), LoadedAt: d.LoadedAt}
}

// Snapshot is a consistent read of a session.
type Snapshot struct {
	ID         string        `json:"id"`
	State      State         `json:"state"`
	Document   *DocumentInfo `json:"document,omitempty"`
	Turns      []Turn        `json:"turns"`
	LastActive time.Time     `json:"last_active"`
}

type activity int

const (
	activityNone activity = iota
	activityLoading
	activityAsking
)

// Session owns at most one document and its conversation. One action
// (upload or question) runs at a time; reads never wait on the model.
type Session struct {
	id  string
	llm llm.Client
	pub events.Publisher
	log *slog.Logger

	// ctx ends when the session closes; in-flight model calls derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	doc        *Document
	conv       Conversation
	busy       activity
	closed     bool
	lastActive time.Time
}

// NewSession builds a standalone session. Most callers go through Manager.
func NewSession(id string, client llm.Client, pub events.Publisher, log *slog.Logger) *Session {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		llm:        client,
		pub:        pub,
		log:        log.With("session_id", id),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// LoadDocument extracts data and makes it the session's document, clearing
// the conversation. Re-uploading the current document (same name and
// content) changes nothing. On a parse failure the previous document and
// conversation stay as they were.
func (s *Session) LoadDocument(ctx context.Context, name string, data []byte) (DocumentInfo, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return DocumentInfo{}, ErrSessionClosed
	}
	if s.busy != activityNone {
		s.mu.Unlock()
		return DocumentInfo{}, ErrBusy
	}
	if s.doc != nil && s.doc.Name == name && s.doc.Digest == digest {
		info := *s.doc.info()
		s.lastActive = time.Now()
		s.mu.Unlock()
		s.log.Debug("document unchanged, keeping conversation", "name", name)
		return info, nil
	}
	s.busy = activityLoading
	s.mu.Unlock()

	start := time.Now()
	pages, err := pdftext.Pages(bytes.NewReader(data), int64(len(data)))

	s.mu.Lock()
	s.busy = activityNone
	s.lastActive = time.Now()
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("document parse failed", "name", name, "err", err)
		return DocumentInfo{}, &Error{Kind: KindDocumentParse, Err: err}
	}
	if s.closed {
		s.mu.Unlock()
		return DocumentInfo{}, ErrSessionClosed
	}
	s.doc = &Document{
		Name:     name,
		Digest:   digest,
		Text:     pdftext.Join(pages),
		Pages:    len(pages),
		LoadedAt: time.Now().UTC(),
	}
	s.conv.Reset()
	info := *s.doc.info()
	s.mu.Unlock()

	s.log.Info("document loaded", "name", name, "pages", info.Pages, "chars", info.Length, "duration", time.Since(start))
	s.publish(ctx, events.Event{
		Type:     events.TypeDocumentLoaded,
		Document: &events.Document{Name: info.Name, Pages: info.Pages, Length: info.Length},
	})
	return info, nil
}

// Ask appends the question, queries the model with the whole document and
// appends the reply. A failed model call is recorded as a model turn whose
// content is Render(err); Ask still returns that turn with a nil error.
func (s *Session) Ask(ctx context.Context, question string) (Turn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Turn{}, ErrSessionClosed
	}
	if s.doc == nil {
		s.mu.Unlock()
		return Turn{}, errNoDocument
	}
	if s.busy != activityNone {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	userTurn := Turn{Role: RoleUser, Content: question, At: time.Now().UTC()}
	s.conv.Append(userTurn)
	s.busy = activityAsking
	s.lastActive = time.Now()
	prompt := BuildPrompt(s.doc.Text, question)
	count := s.conv.Len()
	s.mu.Unlock()

	s.publishTurn(ctx, userTurn, count)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	start := time.Now()
	answer, err := s.llm.Generate(callCtx, prompt)

	modelTurn := Turn{Role: RoleModel, Content: answer, At: time.Now().UTC()}
	if err != nil {
		modelTurn.Content = Render(err)
		modelTurn.Failure = failureName(err)
		s.log.Warn("model invocation failed",
			"kind", modelTurn.Failure,
			"retryable", llm.KindOf(err).Retryable(),
			"duration", time.Since(start),
			"err", err,
		)
	} else {
		s.log.Info("question answered", "duration", time.Since(start), "answer_chars", len(answer))
	}

	s.mu.Lock()
	s.busy = activityNone
	s.lastActive = time.Now()
	if s.closed {
		s.mu.Unlock()
		return Turn{}, ErrSessionClosed
	}
	s.conv.Append(modelTurn)
	count = s.conv.Len()
	s.mu.Unlock()

	s.publishTurn(ctx, modelTurn, count)
	return modelTurn, nil
}

// Close ends the session, canceling any in-flight model call. Further
// operations return ErrSessionClosed. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	count := s.conv.Len()
	s.mu.Unlock()

	s.cancel()
	s.log.Info("session closed", "turns", count)
	s.publish(context.Background(), events.Event{Type: events.TypeSessionClosed, Turns: count})
}

// Snapshot returns the current state, document summary and transcript.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		State:      s.stateLocked(),
		Document:   s.doc.info(),
		Turns:      s.conv.All(),
		LastActive: s.lastActive,
	}
}

// Turns returns the transcript, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.All()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.closed:
		return StateClosed
	case s.busy == activityAsking:
		return StateAwaitingAnswer
	case s.doc != nil:
		return StateDocumentLoaded
	default:
		return StateIdle
	}
}

// idleSince reports when the session last did anything, and whether it is
// busy right now.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.busy != activityNone
}

func (s *Session) publishTurn(ctx context.Context, t Turn, count int) {
	s.publish(ctx, events.Event{
		Type:  events.TypeTurnAppended,
		Turn:  &events.Turn{Role: string(t.Role), Content: t.Content, At: t.At},
		Turns: count,
	})
}

func (s *Session) publish(ctx context.Context, ev events.Event) {
	ev.SessionID = s.id
	ev = events.Stamp(ev)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(pubCtx, ev); err != nil {
		s.log.Warn("failed to publish event", "type", ev.Type, "err", err)
	}
}
