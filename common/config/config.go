package config

import (
	"os"
	"strings"
	"time"

	"github.com/ezlinkai/ai-image-generator/common/env"
	"github.com/google/uuid"
)

var SystemName = "AI Image Generator"
var ServiceName = env.String("SERVICE_NAME", "ai-image-generator")
var InstanceId = env.String("INSTANCE_ID", uuid.New().String()[:8])

// Any options with "Secret", "Key" in its name must never be returned by an API

var SessionSecret = uuid.New().String()

var DebugEnabled = strings.ToLower(os.Getenv("DEBUG")) == "true"
var DebugSQLEnabled = strings.ToLower(os.Getenv("DEBUG_SQL")) == "true"

// API_KEY first, OPENROUTER_API_KEY as a fallback
var APIKey = env.FirstString("", "API_KEY", "OPENROUTER_API_KEY")

var ImageBaseURL = env.String("IMAGE_BASE_URL", "https://openrouter.ai/api")
var ImageModel = env.String("IMAGE_MODEL", "google/imagen-3.0")
var AppTitle = env.String("APP_TITLE", SystemName)
var AppReferer = env.String("APP_REFERER", "")
var RelayProxy = env.String("RELAY_PROXY", "")
var RelayTimeout = env.Int("RELAY_TIMEOUT", 0) // unit is second, 0 means no timeout

// Keywords that mark an upstream error message as a rejected credential (one per line, case-insensitive).
// Only consulted when the upstream gives no structured auth signal.
var AuthErrorKeywords = env.String("AUTH_ERROR_KEYWORDS", `api key not valid
invalid api key
invalid_api_key
incorrect api key provided
no auth credentials found
requested entity was not found
unauthenticated
user not found`)

var MaxImagesPerRequest = env.Int("MAX_IMAGES_PER_REQUEST", 4)

var ShellStateTTL = time.Duration(env.Int("SHELL_STATE_TTL", 60*60)) * time.Second
var ShellSweepInterval = time.Duration(env.Int("SHELL_SWEEP_INTERVAL", 60)) * time.Second

var GenerationLogEnabled = env.Bool("GENERATION_LOG_ENABLED", true)
var ItemsPerPage = 10
var MaxItemsPerPage = 100

var IsMasterNode = os.Getenv("NODE_TYPE") != "slave"

// Comma separated; empty restricts to same-origin requests.
var CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

var SwaggerJSONURL = env.String("SWAGGER_JSON_URL", "/api/swagger.json")

// All duration's unit is seconds
// Shouldn't larger then RateLimitKeyExpirationDuration
var (
	GlobalApiRateLimitNum            = env.Int("GLOBAL_API_RATE_LIMIT", 480)
	GlobalApiRateLimitDuration int64 = int64(env.Int("GLOBAL_API_RATE_LIMIT_DURATION", 3*60))

	GlobalWebRateLimitNum            = env.Int("GLOBAL_WEB_RATE_LIMIT", 240)
	GlobalWebRateLimitDuration int64 = 3 * 60

	GenerateRateLimitNum            = env.Int("GENERATE_RATE_LIMIT", 20)
	GenerateRateLimitDuration int64 = 60
)

var RateLimitKeyExpirationDuration = 20 * time.Minute

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
