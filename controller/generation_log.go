package controller

import (
	"net/http"

	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/ctxkey"
	"github.com/ezlinkai/ai-image-generator/model"
	"github.com/gin-gonic/gin"
)

// GetGenerationLogs lists the generation attempts of the calling session, newest first.
func GetGenerationLogs(c *gin.Context) {
	var query GenerationLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": bindingMessage(err),
		})
		return
	}
	if model.LOG_DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "generation log is not enabled",
		})
		return
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = config.ItemsPerPage
	}
	if pageSize > config.MaxItemsPerPage {
		pageSize = config.MaxItemsPerPage
	}

	logs, total, err := model.GetGenerationLogs(c.GetString(ctxkey.SessionId), query.ErrorKind, query.Page*pageSize, pageSize)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "",
		"data": gin.H{
			"list":        logs,
			"currentPage": query.Page,
			"pageSize":    pageSize,
			"total":       total,
		},
	})
}
