package middleware

import (
	"net/http"

	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/gin-gonic/gin"
	cors "github.com/rs/cors/wrapper/gin"
)

func CORS() gin.HandlerFunc {
	options := cors.Options{
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
	}
	if len(config.CORSAllowedOrigins) > 0 {
		options.AllowedOrigins = config.CORSAllowedOrigins
	} else {
		// same-origin only; browsers send no CORS preflight for it
		options.AllowOriginFunc = func(origin string) bool {
			return false
		}
	}
	return cors.New(options)
}
