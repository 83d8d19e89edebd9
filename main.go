package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ezlinkai/ai-image-generator/common"
	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/ezlinkai/ai-image-generator/controller"
	"github.com/ezlinkai/ai-image-generator/middleware"
	"github.com/ezlinkai/ai-image-generator/model"
	"github.com/ezlinkai/ai-image-generator/monitor"
	"github.com/ezlinkai/ai-image-generator/relay/imagegen"
	"github.com/ezlinkai/ai-image-generator/router"
	"github.com/ezlinkai/ai-image-generator/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

//go:embed web/build/*
var buildFS embed.FS

func main() {
	common.Init()
	logger.SetupLogger()
	logger.SysLog(fmt.Sprintf("%s %s started", config.SystemName, common.Version))
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.DebugEnabled {
		logger.SysLog("running in debug mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	if config.GenerationLogEnabled {
		model.DB, err = model.InitDB("SQL_DSN")
		if err != nil {
			logger.FatalLog("failed to initialize database: " + err.Error())
		}
		if os.Getenv("LOG_SQL_DSN") != "" {
			logger.SysLog("using secondary database for generation logs")
			model.LOG_DB, err = model.InitDB("LOG_SQL_DSN")
			if err != nil {
				logger.FatalLog("failed to initialize secondary database: " + err.Error())
			}
		} else {
			model.LOG_DB = model.DB
		}
		defer func() {
			err := model.CloseDB()
			if err != nil {
				logger.FatalLog("failed to close database: " + err.Error())
			}
		}()
	} else {
		logger.SysLog("generation log disabled")
	}

	// Initialize Redis
	err = common.InitRedisClient()
	if err != nil {
		logger.FatalLog("failed to initialize Redis: " + err.Error())
	}
	var store service.ShellStore
	if common.RedisEnabled {
		logger.SysLog("shell state stored in Redis")
		store = service.NewRedisShellStore(common.RDB, config.ShellStateTTL)
	} else {
		store = service.NewMemoryShellStore(config.ShellStateTTL)
	}

	httpClient, err := service.NewProxyHttpClient(config.RelayProxy, time.Duration(config.RelayTimeout)*time.Second)
	if err != nil {
		logger.FatalLog("failed to create relay http client: " + err.Error())
	}
	client := imagegen.NewClient(imagegen.ConfigFromEnv(), httpClient)
	if !client.HasAPIKey() {
		logger.SysError("API_KEY is not set, every generation will fail with a configuration error")
	}
	logger.SysLog(fmt.Sprintf("generating with model %s", client.Model()))

	shells := service.NewShellManager(
		store,
		client,
		service.EnvKeySelector{APIKey: config.APIKey},
		service.WithAuthKeywords(config.AuthErrorKeywords),
		service.WithMaxImages(config.MaxImagesPerRequest),
	)
	go shells.StartSweeper(ctx, config.ShellSweepInterval, config.ShellStateTTL)

	go monitor.StartGoroutineMonitor(ctx, 30*time.Second)

	// Initialize HTTP server
	server := gin.New()
	server.Use(middleware.PanicRecover())
	server.Use(middleware.RequestId())
	server.Use(middleware.RequestMetrics())
	middleware.SetUpLogger(server)
	// Initialize session store
	sessionStore := cookie.NewStore([]byte(config.SessionSecret))
	server.Use(sessions.Sessions("session", sessionStore))

	router.SetRouter(server, buildFS, controller.NewStudioController(shells, client.Model()))

	var port = os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(*common.Port)
	}
	err = server.Run(":" + port)
	if err != nil {
		logger.FatalLog("failed to start HTTP server: " + err.Error())
	}
}
