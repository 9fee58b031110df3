package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const providerOpenAI = "openai"

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model   openai.ChatModel
	timeout time.Duration
	client  *openai.Client
}

const defaultChatTimeout = 60 * time.Second

// NewOpenAIClient builds a client with defaults against api.openai.com.
// Extra request options (base URL, HTTP client) are applied after the key.
// The SDK's own retries are disabled; a failed call is surfaced once.
func NewOpenAIClient(apiKey string, model openai.ChatModel, timeout time.Duration, reqOpts ...option.RequestOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	opts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, reqOpts...)
	cli := openai.NewClient(opts...)
	return &OpenAIClient{
		model:   model,
		timeout: timeout,
		client:  &cli,
	}, nil
}

// Model returns the configured chat model name.
func (c *OpenAIClient) Model() string { return string(c.model) }

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &Error{Kind: KindMalformedResponse, Provider: providerOpenAI, Err: errors.New("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{Kind: classifyStatus(apiErr.StatusCode), Provider: providerOpenAI, Err: err}
	}
	if kind, ok := classifyTransport(err); ok {
		return &Error{Kind: kind, Provider: providerOpenAI, Err: err}
	}
	return &Error{Kind: KindUnknown, Provider: providerOpenAI, Err: err}
}
