package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VerifySlackSignature checks Slack's v0 HMAC-SHA256 request signature over
// the raw body, rejecting timestamps outside the replay window.
func VerifySlackSignature(secret string, body []byte, timestamp, signature string, window time.Duration, now time.Time) bool {
	if secret == "" || timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	drift := now.Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(window.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SecretEqual compares a shared webhook secret in constant time.
func SecretEqual(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SourceLimiter rate-limits inbound events per source address. Each source
// gets its own token bucket refilled at the configured per-minute rate;
// idle sources are pruned so the map stays bounded.
type SourceLimiter struct {
	mu        sync.Mutex
	sources   map[string]*limiterEntry
	perMinute int
	burst     int
	now       func() time.Time
}

// NewSourceLimiter creates a limiter allowing perMinute requests per source
// with the given burst.
func NewSourceLimiter(perMinute, burst int) *SourceLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &SourceLimiter{
		sources:   make(map[string]*limiterEntry),
		perMinute: perMinute,
		burst:     burst,
		now:       time.Now,
	}
}

// Allow reports whether a request from addr is within its rate limit.
func (l *SourceLimiter) Allow(addr string) bool {
	source := sourceKey(addr)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.sources[source]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst),
		}
		l.sources[source] = entry
	}
	entry.lastSeen = now

	l.pruneLocked(now)
	return entry.limiter.AllowN(now, 1)
}

func (l *SourceLimiter) pruneLocked(now time.Time) {
	for source, entry := range l.sources {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.sources, source)
		}
	}
}

// sourceKey normalizes a remote address to its host part.
func sourceKey(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
