package middleware

import (
	"net/http"

	"github.com/ezlinkai/ai-image-generator/common/ctxkey"
	"github.com/ezlinkai/ai-image-generator/common/helper"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionIdKey = "sid"

// ShellSession makes sure every browser has a session id and exposes it as ctxkey.SessionId.
func ShellSession() func(c *gin.Context) {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		sessionId, _ := session.Get(sessionIdKey).(string)
		if sessionId == "" {
			sessionId = helper.GetUUID()
			session.Set(sessionIdKey, sessionId)
			if err := session.Save(); err != nil {
				logger.Error(c.Request.Context(), "failed to save session: "+err.Error())
				abortWithMessage(c, http.StatusInternalServerError, "failed to create session")
				return
			}
		}
		c.Set(ctxkey.SessionId, sessionId)
		c.Next()
	}
}
