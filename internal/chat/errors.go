package chat

import (
	"errors"
	"fmt"

	"pdf-chat/internal/llm"
)

var (
	// ErrBusy is returned while a question or upload is still in flight.
	ErrBusy            = errors.New("session busy: previous request still in progress")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
)

// ErrorKind classifies failures surfaced by a session.
type ErrorKind int

const (
	KindDocumentParse ErrorKind = iota + 1
	KindNoDocumentLoaded
	KindModelInvocation
)

func (k ErrorKind) String() string {
	switch k {
	case KindDocumentParse:
		return "DocumentParseError"
	case KindNoDocumentLoaded:
		return "NoDocumentLoadedError"
	case KindModelInvocation:
		return "ModelInvocationError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a typed session failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == k
}

var errNoDocument = &Error{Kind: KindNoDocumentLoaded, Err: errors.New("no document loaded")}

// Render turns a failed model invocation into transcript text of the form
// "<TypeName>: <message>". Unclassified errors use ModelInvocationError.
func Render(err error) string {
	if err == nil {
		return ""
	}
	typeName, msg := failureName(err), err.Error()
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		msg = lerr.Provider
		if lerr.Err != nil {
			msg = lerr.Err.Error()
		}
	}
	return typeName + ": " + msg
}

func failureName(err error) string {
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		return lerr.Kind.TypeName()
	}
	return KindModelInvocation.String()
}
