package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const answerKeyPrefix = "pdfchat:answer:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings; an unreachable server is an error.
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

func (c *RedisCache) GetAnswer(ctx context.Context, key string) (*Answer, error) {
	data, err := c.client.Get(ctx, answerKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // miss
	}
	if err != nil {
		return nil, err
	}

	var answer Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, fmt.Errorf("decode cached answer: %w", err)
	}
	return &answer, nil
}

func (c *RedisCache) SetAnswer(ctx context.Context, key string, answer *Answer, ttl time.Duration) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, answerKeyPrefix+key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
