package pagecache

import "time"

// Entry is a cached page.
type Entry struct {
	// Body is the uncompressed page body.
	Body []byte `json:"body"`

	// StatusCode is the HTTP status the page was served with.
	StatusCode int `json:"status_code"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
