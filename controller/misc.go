package controller

import (
	"net/http"
	"strings"

	"github.com/ezlinkai/ai-image-generator/common"
	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/helper"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/ezlinkai/ai-image-generator/monitor"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// GetStatus returns page options and whether a key is available to this session.
func (s *StudioController) GetStatus(c *gin.Context) {
	shell, ok := s.shell(c)
	if !ok {
		return
	}
	// the page calls this once on load
	state, err := shell.RefreshCredential(c.Request.Context())
	if err != nil {
		logger.Warn(c.Request.Context(), err.Error())
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "",
		"data": gin.H{
			"version":        common.Version,
			"start_time":     common.StartTime,
			"system_name":    config.SystemName,
			"model":          s.modelName,
			"has_credential": state.HasCredential,
			"image_options":  imageOptions(shell.MaxImages()),
		},
	})
}

func imageOptions(max int) []int {
	options := make([]int, 0, max)
	for i := 1; i <= max; i++ {
		options = append(options, i)
	}
	return options
}

// GetHealth reports runtime figures and request metrics since start.
func GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   helper.GetTimestamp() - common.StartTime,
		"runtime":  monitor.ReadRuntimeStats(),
		"requests": monitor.Summary(),
	})
}

// bindingMessage turns validator errors into one readable line.
func bindingMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid request: " + err.Error()
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, fieldErr.Field()+" is required")
		case "gte", "min":
			messages = append(messages, fieldErr.Field()+" must be at least "+fieldErr.Param())
		case "lte", "max":
			messages = append(messages, fieldErr.Field()+" must be at most "+fieldErr.Param())
		case "oneof":
			messages = append(messages, fieldErr.Field()+" must be one of: "+fieldErr.Param())
		default:
			messages = append(messages, fieldErr.Field()+" is invalid")
		}
	}
	return strings.Join(messages, "; ")
}
