package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// staleAfter is how long an idle client keeps its bucket before pruning.
const staleAfter = 10 * time.Minute

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-client token bucket keyed by IP: spamming combat
// commands exhausts the burst, then requests trickle in at r per second.
// Stale buckets are pruned inline once the prune deadline passes, so the
// middleware owns no background goroutine.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		clients   = make(map[string]*clientLimiter)
		nextPrune = time.Now().Add(staleAfter)
	)

	take := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.After(nextPrune) {
			for k, cl := range clients {
				if now.Sub(cl.lastSeen) > staleAfter {
					delete(clients, k)
				}
			}
			nextPrune = now.Add(staleAfter / 2)
		}

		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{bucket: rate.NewLimiter(r, b)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		return cl.bucket.Allow()
	}

	return func(c *gin.Context) {
		if !take(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
