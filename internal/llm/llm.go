package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Client is a minimal LLM interface to allow pluggable providers.
// Generate is single-turn and stateless: the prompt carries everything.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Kind classifies a failed model invocation.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindNetwork
	KindRateLimited
	KindUnavailable
	KindRejected
	KindBlocked
	KindMalformedResponse
	KindCanceled
)

// TypeName is the name shown in the transcript, e.g. "TimeoutError".
func (k Kind) TypeName() string {
	switch k {
	case KindTimeout:
		return "TimeoutError"
	case KindNetwork:
		return "NetworkError"
	case KindRateLimited:
		return "RateLimitError"
	case KindUnavailable:
		return "ServiceUnavailableError"
	case KindRejected:
		return "InvalidRequestError"
	case KindBlocked:
		return "BlockedPromptError"
	case KindMalformedResponse:
		return "MalformedResponseError"
	case KindCanceled:
		return "CanceledError"
	default:
		return "ModelError"
	}
}

func (k Kind) String() string { return k.TypeName() }

// Retryable reports whether resending the same question may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork, KindRateLimited, KindUnavailable:
		return true
	default:
		return false
	}
}

// Error wraps a provider failure with its classification.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind.TypeName())
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindUnknown
}

// classifyTransport covers failures common to every provider: context expiry
// and network errors. ok is false when err is none of those.
func classifyTransport(err error) (Kind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, context.Canceled):
		return KindCanceled, true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout, true
		}
		return KindNetwork, true
	}
	return KindUnknown, false
}

// classifyStatus maps an HTTP status code to a Kind.
func classifyStatus(code int) Kind {
	switch {
	case code == 429:
		return KindRateLimited
	case code == 408 || code == 504:
		return KindTimeout
	case code >= 500:
		return KindUnavailable
	case code >= 400:
		return KindRejected
	default:
		return KindUnknown
	}
}
