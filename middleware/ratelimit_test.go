package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newLimitedRouter(r rate.Limit, b int) *gin.Engine {
	eng := gin.New()
	eng.Use(RateLimit(r, b))
	eng.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func TestRateLimitBurstThenRefusal(t *testing.T) {
	// Near-zero refill so the burst is all a client gets.
	r := newLimitedRouter(0.001, 3)

	for i := 0; i < 3; i++ {
		w := get(r, "/", "X-Real-IP", "10.0.1.1")
		assert.Equal(t, http.StatusOK, w.Code, "command %d within burst", i+1)
	}
	w := get(r, "/", "X-Real-IP", "10.0.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitIsolatesClients(t *testing.T) {
	r := newLimitedRouter(0.001, 1)

	assert.Equal(t, http.StatusOK, get(r, "/", "X-Real-IP", "10.1.1.1").Code)
	// A spamming neighbor must not burn anyone else's bucket.
	assert.Equal(t, http.StatusOK, get(r, "/", "X-Real-IP", "10.1.1.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/", "X-Real-IP", "10.1.1.1").Code)
}
