// Package ratelimit tracks server-imposed cooldowns and gates requests
// until they pass. A 429 response with a Retry-After header trips the
// cooldown; every fetcher sharing the tracker then waits it out.
//
// With a Redis client the cooldown is shared by every process pointed at
// the same instance. Without one it is process-local.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyCooldownUntil = "boxd:ratelimit:cooldown_until"
	RedisKeyTrips         = "boxd:ratelimit:trips"
)

const (
	// DefaultCooldown applies when a 429 carries no usable Retry-After.
	DefaultCooldown = 30 * time.Second

	// MaxCooldown caps any single cooldown, however long the server asks for.
	MaxCooldown = 10 * time.Minute
)

// CooldownState is the current back-off window.
type CooldownState struct {
	// Until is the instant requests may resume. Zero means no cooldown.
	Until time.Time `json:"until"`

	// Trips counts how many times the cooldown has been tripped.
	Trips int64 `json:"trips"`
}

// Active reports whether requests must still wait at now.
func (s *CooldownState) Active(now time.Time) bool {
	return now.Before(s.Until)
}

// Remaining returns how long requests must still wait at now.
func (s *CooldownState) Remaining(now time.Time) time.Duration {
	if !s.Active(now) {
		return 0
	}
	return s.Until.Sub(now)
}

// ParseRetryAfter reads a Retry-After header value, either delay-seconds
// or an HTTP date. ok is false for empty or malformed values.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return clamp(time.Duration(secs) * time.Second), true
	}

	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return clamp(d), true
	}

	return 0, false
}

func clamp(d time.Duration) time.Duration {
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}
