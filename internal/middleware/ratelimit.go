package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/response"
)

// RateLimit allows maxRequests per caller and route in each window. Signed-in
// callers are counted by credential and everyone else by client IP. Store
// failures let the request through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		hits, resetIn, err := store.Increment(c.Request.Context(), rateKey(c), window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate store unavailable", zap.Error(err))
			c.Next()
			return
		}

		reset := int(resetIn.Seconds())
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-hits)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if hits > maxRequests {
			c.Header("Retry-After", strconv.Itoa(reset+1))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}

// rateKey never embeds the raw credential.
func rateKey(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	if token, _ := credentials(c); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "ratelimit:cred:" + hex.EncodeToString(sum[:12]) + "|" + route
	}
	return "ratelimit:ip:" + c.ClientIP() + "|" + route
}
