package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/httputil"
)

// KeyFunc extracts the caller identity from a request. ok is false for
// anonymous requests, which are passed through unthrottled.
type KeyFunc func(r *http.Request) (key string, ok bool)

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// UserLimiter keeps one token bucket per caller.
type UserLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewUserLimiter allows perMinute requests per caller per minute, with a
// burst of perMinute.
func NewUserLimiter(perMinute int, key KeyFunc) *UserLimiter {
	return &UserLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		key:     key,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from key's bucket.
func (l *UserLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastAccess = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for longer than l.idle. Callers hold l.mu.
func (l *UserLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastAccess) > l.idle {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *UserLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *UserLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := l.key(r)
		if ok && !l.Allow(key) {
			retryAfter := int(math.Ceil(1.0 / float64(l.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.RespondApology(w, r, apperr.New(apperr.KindRateLimited, ""))
			return
		}
		next.ServeHTTP(w, r)
	})
}
