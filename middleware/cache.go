package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Cache lets browsers keep static assets for a week. The page itself and the API are never cached.
func Cache() func(c *gin.Context) {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		switch {
		case strings.HasPrefix(path, "/api"):
		case path == "/" || path == "/index.html":
			c.Header("Cache-Control", "no-cache")
		default:
			c.Header("Cache-Control", "max-age=604800") // one week
		}
		c.Next()
	}
}
