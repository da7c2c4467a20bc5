package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

const (
	limiterIdle     = 10 * time.Minute
	limiterSweepLen = 10000
)

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client address: perMinute requests
// per minute with an equal burst.
type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	perMinute int
	clock     clock.Clock
}

func newIPLimiter(perMinute int, clk clock.Clock) *ipLimiter {
	return &ipLimiter{clients: map[string]*clientLimiter{}, perMinute: perMinute, clock: clk}
}

func (l *ipLimiter) allow(key string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.clients) >= limiterSweepLen {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdle {
				delete(l.clients, k)
			}
		}
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.lim.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit throttles the credential routes per client address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			s.log.Warn(r.Context(), "rate limited", "client", clientKey(r), "path", r.URL.Path, "tenant_id", tenantOrEmpty(r))
			s.writeError(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
