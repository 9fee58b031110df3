package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores model answers keyed by prompt.
type Cache interface {
	// GetAnswer retrieves a cached answer by key.
	// Returns nil if not found.
	GetAnswer(ctx context.Context, key string) (*Answer, error)

	// SetAnswer stores an answer with TTL.
	SetAnswer(ctx context.Context, key string, answer *Answer, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Answer is a cached model reply.
type Answer struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Key derives the cache key for a prompt sent to model. The whole prompt,
// document text included, goes into the digest.
func Key(model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
