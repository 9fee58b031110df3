package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"pdf-chat/internal/events"
	"pdf-chat/internal/llm"
	"pdf-chat/internal/logger"
	"pdf-chat/internal/pdftext"
	"pdf-chat/internal/pdftext/pdftest"
)

// clientFunc adapts a function to llm.Client.
type clientFunc func(ctx context.Context, prompt string) (string, error)

func (f clientFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func newTestSession(client llm.Client) *Session {
	return NewSession("test-session", client, events.Nop{}, logger.Discard())
}

func mustLoad(t *testing.T, s *Session, name string, data []byte) DocumentInfo {
	t.Helper()
	info, err := s.LoadDocument(context.Background(), name, data)
	if err != nil {
		t.Fatalf("LoadDocument(%q) error = %v", name, err)
	}
	return info
}

func roles(turns []Turn) []Role {
	out := make([]Role, len(turns))
	for i, t := range turns {
		out[i] = t.Role
	}
	return out
}

func TestAskAnswersVerbatim(t *testing.T) {
	data := pdftest.Build("The capital of France is Paris.")
	docText, err := pdftext.Extract(data)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	m := new(llm.MockClient)
	m.On("Generate", mock.Anything, BuildPrompt(docText, "What is the capital?")).
		Return("Paris is the capital.", nil).Once()

	s := newTestSession(m)
	mustLoad(t, s, "a.pdf", data)

	turn, err := s.Ask(context.Background(), "What is the capital?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if turn.Role != RoleModel || turn.Content != "Paris is the capital." || turn.Failure != "" {
		t.Errorf("unexpected turn %+v", turn)
	}

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "What is the capital?" {
		t.Errorf("unexpected user turn %+v", turns[0])
	}
	if turns[1].Content != "Paris is the capital." {
		t.Errorf("expected answer appended verbatim, got %q", turns[1].Content)
	}
	m.AssertExpectations(t)
}

func TestPromptIsDocumentThenQuestion(t *testing.T) {
	var got string
	s := newTestSession(clientFunc(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "ok", nil
	}))
	data := pdftest.Build("Alpha document body")
	mustLoad(t, s, "a.pdf", data)
	docText, _ := pdftext.Extract(data)

	if _, err := s.Ask(context.Background(), "Why alpha?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	want := "Context from PDF:\n" + docText + "\n\nQuestion: Why alpha?"
	if got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
	d := strings.Index(got, "Alpha document body")
	q := strings.Index(got, "Why alpha?")
	if d < 0 || q < 0 || d > q {
		t.Errorf("expected document before question in %q", got)
	}
}

func TestTwoQuestionsAlternateRoles(t *testing.T) {
	m := new(llm.MockClient)
	m.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.HasSuffix(p, "Question: one") })).
		Return("first", nil).Once()
	m.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.HasSuffix(p, "Question: two") })).
		Return("second", nil).Once()

	s := newTestSession(m)
	mustLoad(t, s, "a.pdf", pdftest.Build("text"))

	for _, q := range []string{"one", "two"} {
		before := len(s.Turns())
		if _, err := s.Ask(context.Background(), q); err != nil {
			t.Fatalf("Ask(%q) error = %v", q, err)
		}
		if after := len(s.Turns()); after != before+2 {
			t.Errorf("expected conversation to grow by 2, went %d -> %d", before, after)
		}
	}

	turns := s.Turns()
	wantRoles := []Role{RoleUser, RoleModel, RoleUser, RoleModel}
	wantContent := []string{"one", "first", "two", "second"}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	for i := range turns {
		if turns[i].Role != wantRoles[i] || turns[i].Content != wantContent[i] {
			t.Errorf("turn %d = %+v, want %s %q", i, turns[i], wantRoles[i], wantContent[i])
		}
	}
	m.AssertExpectations(t)
}

func TestModelTimeoutIsRecordedAsTurn(t *testing.T) {
	s := newTestSession(clientFunc(func(context.Context, string) (string, error) {
		return "", &llm.Error{Kind: llm.KindTimeout, Provider: "gemini", Err: context.DeadlineExceeded}
	}))
	mustLoad(t, s, "a.pdf", pdftest.Build("text"))

	turn, err := s.Ask(context.Background(), "still there?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if turn.Content != "TimeoutError: context deadline exceeded" {
		t.Errorf("unexpected content %q", turn.Content)
	}
	if turn.Failure != "TimeoutError" {
		t.Errorf("unexpected failure %q", turn.Failure)
	}

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected user and model turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "still there?" {
		t.Errorf("user turn modified: %+v", turns[0])
	}
	if turns[1].Role != RoleModel || !strings.Contains(turns[1].Content, "TimeoutError") {
		t.Errorf("unexpected model turn %+v", turns[1])
	}
	if s.State() != StateDocumentLoaded {
		t.Errorf("expected session usable after failure, state %v", s.State())
	}
}

func TestAskWithoutDocument(t *testing.T) {
	m := new(llm.MockClient)
	s := newTestSession(m)

	_, err := s.Ask(context.Background(), "anything")
	if !IsKind(err, KindNoDocumentLoaded) {
		t.Fatalf("expected NoDocumentLoaded, got %v", err)
	}
	if n := len(s.Turns()); n != 0 {
		t.Errorf("expected no turns, got %d", n)
	}
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestNewDocumentResetsConversation(t *testing.T) {
	s := newTestSession(llm.StaticClient{Reply: "answer"})
	mustLoad(t, s, "a.pdf", pdftest.Build("Document A"))
	if _, err := s.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	info := mustLoad(t, s, "b.pdf", pdftest.Build("Document B", "more"))
	if info.Name != "b.pdf" || info.Pages != 2 {
		t.Errorf("unexpected document info %+v", info)
	}
	snap := s.Snapshot()
	if len(snap.Turns) != 0 {
		t.Errorf("expected empty conversation after new upload, got %d turns", len(snap.Turns))
	}
	if snap.Document == nil || snap.Document.Name != "b.pdf" {
		t.Errorf("expected document b.pdf, got %+v", snap.Document)
	}
}

func TestSameDocumentKeepsConversation(t *testing.T) {
	s := newTestSession(llm.StaticClient{Reply: "answer"})
	data := pdftest.Build("Document A")
	mustLoad(t, s, "a.pdf", data)
	if _, err := s.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	mustLoad(t, s, "a.pdf", data)
	if n := len(s.Turns()); n != 2 {
		t.Errorf("expected conversation kept on identical re-upload, got %d turns", n)
	}

	// Same name, new content is a new document.
	mustLoad(t, s, "a.pdf", pdftest.Build("Document A, revised"))
	if n := len(s.Turns()); n != 0 {
		t.Errorf("expected reset for changed content, got %d turns", n)
	}
}

func TestParseFailureKeepsState(t *testing.T) {
	s := newTestSession(llm.StaticClient{Reply: "answer"})
	mustLoad(t, s, "a.pdf", pdftest.Build("Document A"))
	if _, err := s.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	_, err := s.LoadDocument(context.Background(), "broken.pdf", []byte("%PDF-1.4\nnot really"))
	if !IsKind(err, KindDocumentParse) {
		t.Fatalf("expected DocumentParse, got %v", err)
	}
	var perr *pdftext.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected wrapped *pdftext.ParseError, got %T", errors.Unwrap(err))
	}

	snap := s.Snapshot()
	if snap.Document == nil || snap.Document.Name != "a.pdf" {
		t.Errorf("expected previous document kept, got %+v", snap.Document)
	}
	if len(snap.Turns) != 2 {
		t.Errorf("expected conversation kept, got %d turns", len(snap.Turns))
	}
}

func TestZeroPageDocumentIsAskable(t *testing.T) {
	var got string
	s := newTestSession(clientFunc(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "nothing to read", nil
	}))

	info := mustLoad(t, s, "empty.pdf", pdftest.Build())
	if info.Pages != 0 || info.Length != 0 {
		t.Errorf("expected empty document, got %+v", info)
	}
	if s.State() != StateDocumentLoaded {
		t.Errorf("expected loaded state, got %v", s.State())
	}

	if _, err := s.Ask(context.Background(), "anything?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got != "Context from PDF:\n\n\nQuestion: anything?" {
		t.Errorf("unexpected prompt %q", got)
	}
}

func TestBusyWhileAwaitingAnswer(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := newTestSession(clientFunc(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "done", nil
	}))
	mustLoad(t, s, "a.pdf", pdftest.Build("text"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.Ask(context.Background(), "slow"); err != nil {
			t.Errorf("Ask() error = %v", err)
		}
	}()
	<-started

	if _, err := s.Ask(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for concurrent question, got %v", err)
	}
	if _, err := s.LoadDocument(context.Background(), "b.pdf", pdftest.Build("other")); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for upload during question, got %v", err)
	}

	snap := s.Snapshot()
	if snap.State != StateAwaitingAnswer {
		t.Errorf("expected awaiting_answer, got %v", snap.State)
	}
	if len(snap.Turns) != 1 || snap.Turns[0].Content != "slow" {
		t.Errorf("expected pending user turn visible, got %+v", snap.Turns)
	}

	close(release)
	wg.Wait()
	if got := roles(s.Turns()); len(got) != 2 {
		t.Errorf("expected 2 turns after answer, got %v", got)
	}
}

func TestCloseCancelsInflightCall(t *testing.T) {
	started := make(chan struct{})
	s := newTestSession(clientFunc(func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", &llm.Error{Kind: llm.KindCanceled, Provider: "test", Err: ctx.Err()}
	}))
	mustLoad(t, s, "a.pdf", pdftest.Build("text"))

	errc := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "q")
		errc <- err
	}()
	<-started
	s.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call was not canceled")
	}

	if _, err := s.Ask(context.Background(), "again"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed after close, got %v", err)
	}
	if _, err := s.LoadDocument(context.Background(), "a.pdf", pdftest.Build("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed for upload after close, got %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed state, got %v", s.State())
	}
}

func TestSessionPublishesEvents(t *testing.T) {
	broker := events.NewBroker(logger.Discard())
	s := NewSession("s1", llm.StaticClient{Reply: "hi"}, broker, logger.Discard())
	ch, cancel := broker.Subscribe("s1")
	defer cancel()

	mustLoad(t, s, "a.pdf", pdftest.Build("text"))
	if _, err := s.Ask(context.Background(), "hello"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	s.Close()

	var got []events.Type
	for ev := range ch {
		if ev.SessionID != "s1" {
			t.Errorf("unexpected session id %q", ev.SessionID)
		}
		got = append(got, ev.Type)
	}
	want := []events.Type{events.TypeDocumentLoaded, events.TypeTurnAppended, events.TypeTurnAppended, events.TypeSessionClosed}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPublishFailureDoesNotFailAsk(t *testing.T) {
	pub := new(events.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats down"))
	s := NewSession("s1", llm.StaticClient{Reply: "hi"}, pub, logger.Discard())

	mustLoad(t, s, "a.pdf", pdftest.Build("text"))
	turn, err := s.Ask(context.Background(), "hello")
	if err != nil || turn.Content != "hi" {
		t.Fatalf("Ask() = (%+v, %v)", turn, err)
	}
	pub.AssertNumberOfCalls(t, "Publish", 3)
}
