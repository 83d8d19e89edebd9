package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/ezlinkai/ai-image-generator/common/helper"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/gin-gonic/gin"
)

func PanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), fmt.Sprintf("panic detected: %v", err))
				logger.Error(c.Request.Context(), fmt.Sprintf("stacktrace from panic: %s", string(debug.Stack())))
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"message": helper.MessageWithRequestId("An unexpected error occurred.", c.GetString(logger.RequestIdKey)),
					"error": gin.H{
						"message": fmt.Sprintf("panic detected, error: %v", err),
						"type":    "image_generator_panic",
					},
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
