package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// staleAfter is how long an idle client keeps its token bucket.
const staleAfter = 10 * time.Minute

// limiterPool holds one token bucket per client IP.
type limiterPool struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	byIP  map[string]*clientLimiter
}

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func (p *limiterPool) allow(ip string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cl, ok := p.byIP[ip]
	if !ok {
		cl = &clientLimiter{bucket: rate.NewLimiter(p.rps, p.burst)}
		p.byIP[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.bucket.Allow()
}

func (p *limiterPool) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ip, cl := range p.byIP {
		if time.Since(cl.lastSeen) > staleAfter {
			delete(p.byIP, ip)
		}
	}
}

// RateLimiter returns a gin middleware enforcing per-IP token-bucket rate
// limiting. rps is the steady-state requests per second, burst the maximum
// burst size.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	pool := &limiterPool{
		rps:   rate.Limit(rps),
		burst: burst,
		byIP:  make(map[string]*clientLimiter),
	}

	go func() {
		for range time.Tick(5 * time.Minute) {
			pool.sweep()
		}
	}()

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
