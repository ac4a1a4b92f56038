package rankingapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter meters the read API per client address. Every route draws
// from the same bucket; rendered exports draw several tokens at once.
type ClientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewClientLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*clientBucket),
		limit:   limit,
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// take spends cost tokens for client. When refused it reports how long the
// client must wait for them.
func (l *ClientLimiter) take(client string, cost int) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}

	c, ok := l.clients[client]
	if !ok {
		c = &clientBucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now

	cost = min(cost, l.burst)
	if c.tokens.AllowN(now, cost) {
		return 0, true
	}
	missing := float64(cost) - c.tokens.TokensAt(now)
	return time.Duration(missing / float64(l.limit) * float64(time.Second)), false
}

// sweep forgets clients idle for longer than idleTTL. A forgotten client
// starts again with a full bucket, which it would have refilled by now.
func (l *ClientLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}

func (l *ClientLimiter) clientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Limit charges cost tokens per request and answers 429 with Retry-After
// once the client's bucket is empty. RemoteAddr is expected to be rewritten
// by chi's RealIP middleware upstream.
func (l *ClientLimiter) Limit(cost int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wait, ok := l.take(clientKey(r), cost)
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey drops the port so every connection from one host shares a bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
