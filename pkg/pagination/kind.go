package pagination

import (
	"fmt"
	"strings"
)

// Kind names a paginated collection type.
type Kind string

const (
	KindWatchlist Kind = "watchlist"
	KindDiary     Kind = "diary"
	KindLogs      Kind = "logs"
	KindReviews   Kind = "reviews"
	KindList      Kind = "list"
	KindUserLists Kind = "user-lists"
	KindFeed      Kind = "feed"
)

// Items served per page by the site.
var pageSizes = map[Kind]int{
	KindWatchlist: 28,
	KindDiary:     50,
	KindLogs:      72,
	KindReviews:   12,
	KindList:      100,
	KindUserLists: 12,
	KindFeed:      72,
}

// PageSize returns the number of items the site serves per page, or 0
// for an unknown kind.
func (k Kind) PageSize() int {
	return pageSizes[k]
}

// Kinds lists the kinds that carry a declared total.
func Kinds() []Kind {
	return []Kind{KindWatchlist, KindDiary, KindLogs, KindReviews, KindList, KindUserLists}
}

// ParseKind accepts a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := pageSizes[k]; !ok {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}
