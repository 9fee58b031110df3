package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindTypeNameAndRetryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		typeName  string
		retryable bool
	}{
		{KindTimeout, "TimeoutError", true},
		{KindNetwork, "NetworkError", true},
		{KindRateLimited, "RateLimitError", true},
		{KindUnavailable, "ServiceUnavailableError", true},
		{KindRejected, "InvalidRequestError", false},
		{KindBlocked, "BlockedPromptError", false},
		{KindMalformedResponse, "MalformedResponseError", false},
		{KindCanceled, "CanceledError", false},
		{KindUnknown, "ModelError", false},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			if got := tt.kind.TypeName(); got != tt.typeName {
				t.Errorf("TypeName() = %q, want %q", got, tt.typeName)
			}
			if got := tt.kind.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "dial tcp: i/o" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   Kind
		wantOK bool
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), KindTimeout, true},
		{"canceled", context.Canceled, KindCanceled, true},
		{"net timeout", timeoutErr{timeout: true}, KindTimeout, true},
		{"net refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindNetwork, true},
		{"other", errors.New("boom"), KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classifyTransport(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("classifyTransport() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{429, KindRateLimited},
		{408, KindTimeout},
		{504, KindTimeout},
		{500, KindUnavailable},
		{503, KindUnavailable},
		{400, KindRejected},
		{401, KindRejected},
		{200, KindUnknown},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.code); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestClassifyGemini(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"blocked", &genai.BlockedError{}, KindBlocked},
		{"quota", status.Error(codes.ResourceExhausted, "quota"), KindRateLimited},
		{"unavailable", status.Error(codes.Unavailable, "down"), KindUnavailable},
		{"deadline code", status.Error(codes.DeadlineExceeded, "slow"), KindTimeout},
		{"bad argument", status.Error(codes.InvalidArgument, "too long"), KindRejected},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGemini(tt.err)
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected classified error to wrap %v", tt.err)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindTimeout, Provider: "openai", Err: context.DeadlineExceeded}
	if got := err.Error(); got != "openai: context deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}
	if KindOf(fmt.Errorf("wrapped: %w", err)) != KindTimeout {
		t.Error("expected KindOf to see through wrapping")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("expected unknown kind for foreign errors")
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello, "), genai.Text("world")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	if got := responseText(resp); got != "Hello, world" {
		t.Errorf("responseText() = %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Errorf("responseText(nil) = %q", got)
	}
}

func TestStaticClient(t *testing.T) {
	c := StaticClient{Reply: "fixed"}
	got, err := c.Generate(context.Background(), "anything")
	if err != nil || got != "fixed" {
		t.Fatalf("Generate() = (%q, %v)", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Generate(ctx, "anything"); KindOf(err) != KindCanceled {
		t.Errorf("expected canceled kind, got %v", err)
	}
}
