package llm

import (
	"context"
	"log/slog"
	"time"

	"pdf-chat/internal/cache"
)

// Modeled is implemented by clients that know which model they call.
type Modeled interface {
	Model() string
}

// CachingClient answers repeated prompts from a cache. Cache failures are
// logged and never fail the call; errors from the wrapped client are never
// cached.
type CachingClient struct {
	next  Client
	cache cache.Cache
	ttl   time.Duration
	model string
	log   *slog.Logger
}

// NewCachingClient wraps next. The model name, when next exposes one, is part
// of the cache key.
func NewCachingClient(next Client, c cache.Cache, ttl time.Duration, log *slog.Logger) *CachingClient {
	model := ""
	if m, ok := next.(Modeled); ok {
		model = m.Model()
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachingClient{next: next, cache: c, ttl: ttl, model: model, log: log}
}

func (c *CachingClient) Model() string { return c.model }

func (c *CachingClient) Generate(ctx context.Context, prompt string) (string, error) {
	key := cache.Key(c.model, prompt)

	cached, err := c.cache.GetAnswer(ctx, key)
	if err != nil {
		c.log.Warn("answer cache lookup failed", "error", err)
	} else if cached != nil {
		c.log.Debug("answer cache hit", "key", key)
		return cached.Text, nil
	}

	text, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	answer := &cache.Answer{Text: text, Model: c.model, CreatedAt: time.Now().UTC()}
	if err := c.cache.SetAnswer(ctx, key, answer, c.ttl); err != nil {
		c.log.Warn("answer cache store failed", "error", err)
	}
	return text, nil
}
