package rest

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// apiKeyAuth guards an endpoint group with a static key. The key is
// accepted as `Authorization: ApiKey <key>`, `Authorization: Bearer
// <key>` or an `X-Api-Key` header.
func apiKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := extractKey(c)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			respondError(c, http.StatusUnauthorized, "invalid or missing API key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractKey(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		for _, scheme := range []string{"ApiKey ", "Bearer "} {
			if strings.HasPrefix(header, scheme) {
				return strings.TrimPrefix(header, scheme)
			}
		}
	}
	return c.GetHeader("X-Api-Key")
}
