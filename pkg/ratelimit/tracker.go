package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	cooldownRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxd_cooldown_remaining_seconds",
		Help: "Seconds left in the current server-imposed cooldown",
	})

	cooldownTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxd_cooldown_trips_total",
		Help: "Total number of times a 429 response tripped the cooldown",
	})

	cooldownWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxd_cooldown_waits_total",
		Help: "Total number of requests delayed by an active cooldown",
	})
)

// Tracker records cooldowns and makes requests wait for them.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local CooldownState
}

// NewTracker creates a tracker. redisClient may be nil for a
// process-local tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// State returns the current cooldown.
func (t *Tracker) State(ctx context.Context) (*CooldownState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		st := t.local
		return &st, nil
	}

	untilMs, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}
	trips, err := t.redis.Get(ctx, RedisKeyTrips).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown trips: %w", err)
	}

	st := &CooldownState{Trips: trips}
	if untilMs > 0 {
		st.Until = time.UnixMilli(untilMs)
	}
	return st, nil
}

// Trip starts or extends the cooldown so that it lasts at least d from
// now. A shorter request never shortens an active cooldown.
func (t *Tracker) Trip(ctx context.Context, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	d = clamp(d)
	now := t.now()
	until := now.Add(d)

	if t.redis == nil {
		t.mu.Lock()
		if until.After(t.local.Until) {
			t.local.Until = until
		}
		t.local.Trips++
		t.mu.Unlock()
	} else {
		current, err := t.State(ctx)
		if err != nil {
			return err
		}
		pipe := t.redis.Pipeline()
		if d > 0 && until.After(current.Until) {
			pipe.Set(ctx, RedisKeyCooldownUntil, until.UnixMilli(), d)
		}
		pipe.Incr(ctx, RedisKeyTrips)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store cooldown in redis: %w", err)
		}
	}

	cooldownTripsTotal.Inc()
	cooldownRemaining.Set(d.Seconds())
	t.logger.Warn().
		Dur("cooldown", d).
		Time("until", until).
		Msg("Server asked us to back off, requests paused")
	return nil
}

// UpdateFromResponse trips the cooldown for a 429 response, honouring its
// Retry-After header. Other statuses are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, status int, headers http.Header) error {
	if status != http.StatusTooManyRequests {
		return nil
	}
	d, ok := ParseRetryAfter(headers.Get("Retry-After"), t.now())
	if !ok {
		d = DefaultCooldown
	}
	return t.Trip(ctx, d)
}

// Wait blocks until no cooldown is active or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	st, err := t.State(ctx)
	if err != nil {
		// A broken state store must not stop fetching.
		t.logger.Warn().Err(err).Msg("Cooldown state unavailable, not waiting")
		return nil
	}

	remaining := st.Remaining(t.now())
	if remaining <= 0 {
		cooldownRemaining.Set(0)
		return nil
	}

	cooldownWaitsTotal.Inc()
	t.logger.Info().Dur("wait", remaining).Msg("Waiting for cooldown")

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
