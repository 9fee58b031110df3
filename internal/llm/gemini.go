package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	providerGemini     = "gemini"
	defaultGeminiModel = "gemini-1.5-flash"
)

// GeminiClient calls a Gemini model through Vertex AI.
type GeminiClient struct {
	modelName string
	timeout   time.Duration
	client    *genai.Client
	model     *genai.GenerativeModel
}

// NewGeminiClient dials Vertex AI for the given project and location.
// credentialsFile may be empty, in which case application default
// credentials are used.
func NewGeminiClient(ctx context.Context, projectID, location, model, credentialsFile string, timeout time.Duration) (*GeminiClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("google cloud project required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := genai.NewClient(ctx, projectID, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	return &GeminiClient{
		modelName: model,
		timeout:   timeout,
		client:    client,
		model:     client.GenerativeModel(model),
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.modelName }

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("nil gemini client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(reqCtx, genai.Text(prompt))
	if err != nil {
		return "", classifyGemini(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", &Error{Kind: KindMalformedResponse, Provider: providerGemini, Err: errors.New("empty response")}
	}
	return text, nil
}

// Close releases the underlying gRPC connection.
func (c *GeminiClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	// Only the first candidate is the answer.
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func classifyGemini(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &Error{Kind: KindBlocked, Provider: providerGemini, Err: err}
	}
	if kind, ok := classifyTransport(err); ok {
		return &Error{Kind: kind, Provider: providerGemini, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		return &Error{Kind: classifyCode(st.Code()), Provider: providerGemini, Err: err}
	}
	return &Error{Kind: KindUnknown, Provider: providerGemini, Err: err}
}

func classifyCode(code codes.Code) Kind {
	switch code {
	case codes.DeadlineExceeded:
		return KindTimeout
	case codes.Canceled:
		return KindCanceled
	case codes.ResourceExhausted:
		return KindRateLimited
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return KindUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied,
		codes.Unauthenticated, codes.NotFound, codes.OutOfRange:
		return KindRejected
	default:
		return KindUnknown
	}
}
