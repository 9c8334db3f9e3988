package pagecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the page is not cached
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores page bodies in Redis.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a page cache with a fixed TTL for every entry.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient, ttl: ttl}
}

// Get returns the cached body for url.
// Returns ErrCacheMiss if the page isn't cached or has expired.
func (m *Manager) Get(ctx context.Context, url string) ([]byte, error) {
	entry, err := m.GetEntry(ctx, url)
	if err != nil {
		return nil, err
	}
	return entry.Body, nil
}

// GetEntry returns the full cached entry for url.
func (m *Manager) GetEntry(ctx context.Context, url string) (*Entry, error) {
	data, err := m.redis.Get(ctx, Key(url)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decode(data)
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		_ = m.Delete(ctx, url)
		return nil, err
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, url)
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.Inc()
	return entry, nil
}

// Set stores body for url. A non-positive TTL disables storing.
func (m *Manager) Set(ctx context.Context, url string, body []byte) error {
	if m.ttl <= 0 {
		return nil
	}

	now := time.Now()
	entry := &Entry{
		Body:       body,
		StatusCode: http.StatusOK,
		CachedAt:   now,
		Expires:    now.Add(m.ttl),
	}

	data, err := encode(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return err
	}

	if err := m.redis.Set(ctx, Key(url), data, m.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	storedBytes.WithLabelValues("raw").Add(float64(len(body)))
	storedBytes.WithLabelValues("compressed").Add(float64(len(data)))
	return nil
}

// Delete removes a cached page.
func (m *Manager) Delete(ctx context.Context, url string) error {
	if err := m.redis.Del(ctx, Key(url)).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
