package pagecache

import (
	"net/url"
	"strings"
)

const keyPrefix = "boxd:page"

// Key derives the Redis key for a page URL. Scheme, host case, query
// order and a trailing slash do not change the key.
//
// Example:
//
//	boxd:page:letterboxd.com/dave/films/diary/page/2
func Key(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return keyPrefix + ":" + strings.TrimRight(rawURL, "/")
	}

	key := keyPrefix + ":" + strings.ToLower(u.Host) + strings.TrimRight(u.EscapedPath(), "/")
	if q := u.Query(); len(q) > 0 {
		key += "?" + q.Encode()
	}
	return key
}
