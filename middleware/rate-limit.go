package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/ezlinkai/ai-image-generator/common"
	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/gin-gonic/gin"
)

var timeFormat = "2006-01-02T15:04:05.000Z"

var inMemoryRateLimiter common.InMemoryRateLimiter

const rateLimitMessage = "Too many requests, please try again later."

func redisRateLimiter(c *gin.Context, maxRequestNum int, duration int64, mark string) {
	ctx := context.Background()
	rdb := common.RDB
	key := "rateLimit:" + mark + c.ClientIP()
	listLength, err := rdb.LLen(ctx, key).Result()
	if err != nil {
		logger.Error(c.Request.Context(), "rate limit: "+err.Error())
		abortWithMessage(c, http.StatusInternalServerError, "rate limiter unavailable")
		return
	}
	if listLength < int64(maxRequestNum) {
		rdb.LPush(ctx, key, time.Now().Format(timeFormat))
		rdb.Expire(ctx, key, config.RateLimitKeyExpirationDuration)
		c.Next()
		return
	}
	oldTimeStr, _ := rdb.LIndex(ctx, key, -1).Result()
	oldTime, err := time.Parse(timeFormat, oldTimeStr)
	if err != nil {
		logger.Error(c.Request.Context(), "rate limit: "+err.Error())
		abortWithMessage(c, http.StatusInternalServerError, "rate limiter unavailable")
		return
	}
	nowTime, _ := time.Parse(timeFormat, time.Now().Format(timeFormat))
	// time.Since will return negative number!
	// See: https://stackoverflow.com/questions/50970900/why-is-time-since-returning-negative-durations-on-windows
	if int64(nowTime.Sub(oldTime).Seconds()) < duration {
		rdb.Expire(ctx, key, config.RateLimitKeyExpirationDuration)
		abortWithMessage(c, http.StatusTooManyRequests, rateLimitMessage)
		return
	}
	rdb.LPush(ctx, key, time.Now().Format(timeFormat))
	rdb.LTrim(ctx, key, 0, int64(maxRequestNum-1))
	rdb.Expire(ctx, key, config.RateLimitKeyExpirationDuration)
	c.Next()
}

func memoryRateLimiter(c *gin.Context, maxRequestNum int, duration int64, mark string) {
	key := mark + c.ClientIP()
	if !inMemoryRateLimiter.Request(key, maxRequestNum, duration) {
		abortWithMessage(c, http.StatusTooManyRequests, rateLimitMessage)
		return
	}
	c.Next()
}

func rateLimitFactory(maxRequestNum int, duration int64, mark string) func(c *gin.Context) {
	if maxRequestNum <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if common.RedisEnabled && common.RDB != nil {
		return func(c *gin.Context) {
			redisRateLimiter(c, maxRequestNum, duration, mark)
		}
	}
	// It's safe to call multi times.
	inMemoryRateLimiter.Init(config.RateLimitKeyExpirationDuration)
	return func(c *gin.Context) {
		memoryRateLimiter(c, maxRequestNum, duration, mark)
	}
}

func GlobalWebRateLimit() func(c *gin.Context) {
	return rateLimitFactory(config.GlobalWebRateLimitNum, config.GlobalWebRateLimitDuration, "GW")
}

func GlobalAPIRateLimit() func(c *gin.Context) {
	return rateLimitFactory(config.GlobalApiRateLimitNum, config.GlobalApiRateLimitDuration, "GA")
}

func GenerateRateLimit() func(c *gin.Context) {
	return rateLimitFactory(config.GenerateRateLimitNum, config.GenerateRateLimitDuration, "GEN")
}
