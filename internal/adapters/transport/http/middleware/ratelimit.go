package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitPerIP keeps one token bucket per client IP in an expiring LRU so
// the map cannot grow without bound.
func RateLimitPerIP(limit, burst int, cacheSize int, entryTTL time.Duration) gin.HandlerFunc {
	visitors := lru.NewLRU[string, *rate.Limiter](cacheSize, nil, entryTTL)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		lim, found := visitors.Get(ip)
		if !found {
			lim = rate.NewLimiter(rate.Limit(limit), burst)
			visitors.Add(ip, lim)
		}

		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
