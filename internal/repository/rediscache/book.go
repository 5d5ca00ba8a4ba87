// Package rediscache provides the Redis-backed book detail cache. The rating
// projection stored on a cached book goes stale the moment a review mutates,
// so the aggregator invalidates the entry after every recompute.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readshelf/readshelf/internal/domain"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

const keyPrefix = "book:"

// BookCache implements repository.BookCache using Redis.
type BookCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBookCache creates a new Redis-backed book cache.
func NewBookCache(client *redis.Client, ttl time.Duration) *BookCache {
	return &BookCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached book by ID. A cache miss surfaces as ErrNotFound.
func (c *BookCache) Get(ctx context.Context, id string) (*domain.Book, error) {
	key := keyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("redis get book: %w", err)
	}

	var book domain.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("unmarshal book: %w", err)
	}

	return &book, nil
}

// Set caches a book with the configured TTL.
func (c *BookCache) Set(ctx context.Context, book *domain.Book) error {
	key := keyPrefix + book.ID

	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set book: %w", err)
	}

	return nil
}

// Invalidate removes a book from the cache by ID.
func (c *BookCache) Invalidate(ctx context.Context, id string) error {
	key := keyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del book: %w", err)
	}

	return nil
}
