package router

import (
	"github.com/ezlinkai/ai-image-generator/controller"
	"github.com/ezlinkai/ai-image-generator/docs"
	"github.com/ezlinkai/ai-image-generator/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func SetApiRouter(router *gin.Engine, studio *controller.StudioController) {
	router.Use(middleware.CORS())
	apiRouter := router.Group("/api")
	apiRouter.Use(gzip.Gzip(gzip.DefaultCompression))
	apiRouter.Use(middleware.GlobalAPIRateLimit())
	{
		apiRouter.GET("/swagger.json", docs.Serve)
		apiRouter.GET("/monitor/health", controller.GetHealth)

		sessionRoute := apiRouter.Group("/")
		sessionRoute.Use(middleware.ShellSession())
		{
			sessionRoute.GET("/status", studio.GetStatus)
			sessionRoute.GET("/state", studio.GetState)
			sessionRoute.POST("/generate", middleware.GenerateRateLimit(), studio.Generate)
			sessionRoute.GET("/images/:index/download", studio.DownloadImage)
			sessionRoute.POST("/key/select", studio.SelectKey)
			sessionRoute.POST("/promo/dismiss", studio.DismissPromo)
			sessionRoute.GET("/generations", controller.GetGenerationLogs)
		}
	}
}
