package tile

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxAgeLimit caps max-age; larger values are treated as this many seconds.
const maxAgeLimit = 1 << 31

// Expiry carries the freshness hints of a tile response.
type Expiry struct {
	CacheControl string
	Expires      string
	ExpiresAt    time.Time
}

// SetExpiry records freshness hints received at now. max-age wins over
// Expires; a response with neither clears the expiry.
func (t *Tile) SetExpiry(cacheControl, expires string, now time.Time) {
	if cacheControl == "" && expires == "" {
		t.Expiry = nil
		return
	}

	e := &Expiry{CacheControl: cacheControl, Expires: expires}
	if maxAge, ok := parseMaxAge(cacheControl); ok {
		e.ExpiresAt = now.Add(time.Duration(maxAge) * time.Second)
	} else if at, err := http.ParseTime(expires); err == nil {
		e.ExpiresAt = at
	}
	t.Expiry = e
}

// Expired reports whether the recorded freshness lifetime has run out.
func (t *Tile) Expired(now time.Time) bool {
	if t.Expiry == nil || t.Expiry.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.Expiry.ExpiresAt)
}

func parseMaxAge(cacheControl string) (int64, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		digits := strings.Trim(value, `"`)
		seconds, err := strconv.ParseInt(digits, 10, 64)
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(digits, "-") {
			return maxAgeLimit, true
		}
		if err != nil || seconds < 0 {
			return 0, false
		}
		return min(seconds, maxAgeLimit), true
	}
	return 0, false
}
