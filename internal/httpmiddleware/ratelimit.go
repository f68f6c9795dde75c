package httpmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"volunteerledger/internal/auth"
)

// TokenBucket is an in-memory per-caller rate limiter. Limits are per
// process; run a shared limiter in front when scaling out.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	pruned   time.Time
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at
// perMinute tokens per minute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

// CallerKey identifies the caller: the authenticated user when there is
// one, the client IP otherwise.
func CallerKey(c *gin.Context) string {
	if p, ok := auth.PrincipalFrom(c); ok {
		return "user:" + p.UserID
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// Middleware enforces the limit for the caller. A non-positive rate
// disables limiting.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.allow(CallerKey(c)) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// retryAfter is the number of seconds until one token refills.
func (l *TokenBucket) retryAfter() int {
	secs := 60 / l.rate
	if secs < 1 {
		secs = 1
	}
	return secs
}

// refillWindow is how long an empty bucket takes to fill up again. It is
// never shorter than a minute.
func (l *TokenBucket) refillWindow() time.Duration {
	if l.rate <= 0 {
		return time.Minute
	}
	w := time.Duration(float64(l.capacity) / float64(l.rate) * float64(time.Minute))
	if w < time.Minute {
		w = time.Minute
	}
	return w
}

// prune drops buckets idle for a full refill window. Such a bucket is full
// again, so a fresh one behaves the same.
func (l *TokenBucket) prune(now time.Time) {
	window := l.refillWindow()
	if now.Sub(l.pruned) < window {
		return
	}
	for k, b := range l.state {
		if now.Sub(b.last) >= window {
			delete(l.state, k)
		}
	}
	l.pruned = now
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
