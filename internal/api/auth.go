package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HeaderInternalAPIKey carries the shared secret for service-to-service calls
const HeaderInternalAPIKey = "X-Internal-API-Key"

// AuthMiddleware validates the shared internal API key. The comparison is
// constant time; a missing or wrong key is rejected with the same status so
// callers cannot distinguish the two.
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(HeaderInternalAPIKey)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			log.Warn().
				Str("ip", c.ClientIP()).
				Str("path", c.Request.URL.Path).
				Msg("Auth: invalid or missing internal API key")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
