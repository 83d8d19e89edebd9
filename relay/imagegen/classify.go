package imagegen

import (
	"fmt"
	"net/http"
	"strings"

	relaymodel "github.com/ezlinkai/ai-image-generator/relay/model"
)

// IsAuthFailure decides whether an upstream failure means the credential was rejected.
// Status code, error type and error code are checked first; the message keywords
// (newline separated, case-insensitive) are only a fallback.
func IsAuthFailure(statusCode int, upstream *relaymodel.Error, keywords string) bool {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return true
	}
	if upstream == nil {
		return false
	}

	switch upstream.Type {
	case "authentication_error", "permission_error":
		return true
	}

	switch code := upstream.Code.(type) {
	case string:
		if code == "invalid_api_key" || code == "401" {
			return true
		}
	case float64:
		if code == http.StatusUnauthorized {
			return true
		}
	case int:
		if code == http.StatusUnauthorized {
			return true
		}
	}

	return MatchKeywords(upstream.Message, keywords)
}

// IsAuthError reports whether err should send the user back to key selection.
// Errors that carry no kind are matched by message.
func IsAuthError(err error, keywords string) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindAuth:
		return true
	case "":
		return MatchKeywords(err.Error(), keywords)
	}
	return false
}

func MatchKeywords(message string, keywords string) bool {
	if message == "" || keywords == "" {
		return false
	}
	message = strings.ToLower(message)
	for _, keyword := range strings.Split(keywords, "\n") {
		keyword = strings.TrimSpace(strings.ToLower(keyword))
		if keyword != "" && strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}

func upstreamReason(statusCode int, message string) string {
	if message == "" {
		message = UpstreamFallbackReason
	}
	return fmt.Sprintf("API Error (%d): %s", statusCode, message)
}
