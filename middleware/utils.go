package middleware

import (
	"github.com/ezlinkai/ai-image-generator/common/helper"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/gin-gonic/gin"
)

func abortWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"message": helper.MessageWithRequestId(message, c.GetString(logger.RequestIdKey)),
		"error": gin.H{
			"message": message,
			"type":    "api_error",
		},
	})
	c.Abort()
	logger.Warn(c.Request.Context(), message)
}
