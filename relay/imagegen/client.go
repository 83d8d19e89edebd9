package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/image"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	relaymodel "github.com/ezlinkai/ai-image-generator/relay/model"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api"
	DefaultModel   = "google/imagen-3.0"
	DefaultTitle   = "AI Image Generator"

	generationsPath = "/v1/images/generations"
	responseFormat  = "b64_json"
	aspectRatio     = "1:1"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer is sent as HTTP-Referer. When empty the origin stored with WithReferer is used.
	Referer      string
	Title        string
	AuthKeywords string
}

// ConfigFromEnv reads the adapter settings from common/config.
func ConfigFromEnv() Config {
	return Config{
		APIKey:       config.APIKey,
		BaseURL:      config.ImageBaseURL,
		Model:        config.ImageModel,
		Referer:      config.AppReferer,
		Title:        config.AppTitle,
		AuthKeywords: config.AuthErrorKeywords,
	}
}

type Client struct {
	cfg  Config
	doer Doer
}

func NewClient(cfg Config, doer Doer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{cfg: cfg, doer: doer}
}

func (c *Client) Model() string {
	return c.cfg.Model
}

func (c *Client) HasAPIKey() bool {
	return c.cfg.APIKey != ""
}

type refererKey struct{}

// WithReferer stores the page origin to be sent as HTTP-Referer.
func WithReferer(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, refererKey{}, origin)
}

func (c *Client) referer(ctx context.Context) string {
	if c.cfg.Referer != "" {
		return c.cfg.Referer
	}
	if origin, ok := ctx.Value(refererKey{}).(string); ok {
		return origin
	}
	return ""
}

// GenerateImages asks the upstream for count images of prompt and returns their base64 payloads
// in upstream order. Every failure is a *GenerationError.
func (c *Client) GenerateImages(ctx context.Context, prompt string, count int) ([]string, error) {
	if c.cfg.APIKey == "" {
		return nil, &GenerationError{Kind: KindConfiguration, Message: MissingKeyMessage}
	}

	startTime := time.Now()
	payloads, err := c.generate(ctx, prompt, count)
	if err != nil {
		logger.Errorf(ctx, "image generation failed: model=%s n=%d duration=%s error=%s",
			c.cfg.Model, count, time.Since(startTime), err.Error())
		return nil, err
	}
	logger.Infof(ctx, "image generation succeeded: model=%s n=%d images=%d duration=%s",
		c.cfg.Model, count, len(payloads), time.Since(startTime))
	return payloads, nil
}

func (c *Client) generate(ctx context.Context, prompt string, count int) ([]string, error) {
	imageRequest := relaymodel.ImageRequest{
		Model:          c.cfg.Model,
		Prompt:         prompt,
		N:              count,
		ResponseFormat: responseFormat,
		AspectRatio:    aspectRatio,
	}
	jsonData, err := json.Marshal(imageRequest)
	if err != nil {
		return nil, newGenerationError(KindUnknown, err.Error(), errors.Wrap(err, "marshal image request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+generationsPath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, newGenerationError(KindUnknown, err.Error(), errors.Wrap(err, "new request failed"))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if referer := c.referer(ctx); referer != "" {
		req.Header.Set("HTTP-Referer", referer)
	}
	req.Header.Set("X-Title", c.cfg.Title)

	logger.Debugf(ctx, "image generation request: url=%s model=%s n=%d", req.URL.String(), c.cfg.Model, count)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, newGenerationError(KindUnknown, err.Error(), errors.Wrap(err, "do request failed"))
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newGenerationError(KindUnknown, err.Error(), errors.Wrap(err, "read response body failed"))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.upstreamError(ctx, resp.StatusCode, responseBody)
	}

	var imageResponse relaymodel.ImageResponse
	if err := json.Unmarshal(responseBody, &imageResponse); err != nil {
		return nil, newGenerationError(KindUnknown, "invalid response from upstream: "+err.Error(),
			errors.Wrap(err, "unmarshal image response"))
	}
	if imageResponse.Error != nil && imageResponse.Error.Message != "" {
		return nil, c.classified(&relaymodel.ErrorWithStatusCode{
			Error:      *imageResponse.Error,
			StatusCode: resp.StatusCode,
		})
	}
	if len(imageResponse.Data) == 0 {
		return nil, newGenerationError(KindEmptyResult, EmptyResultReason, nil)
	}

	payloads := make([]string, 0, len(imageResponse.Data))
	for i, data := range imageResponse.Data {
		if data.B64Json == "" {
			return nil, newGenerationError(KindUnknown, fmt.Sprintf("image %d has no b64_json data.", i+1), nil)
		}
		if err := image.Validate(data.B64Json); err != nil {
			return nil, newGenerationError(KindUnknown, fmt.Sprintf("image %d is not valid base64.", i+1), err)
		}
		if config.DebugEnabled {
			if width, height, err := image.GetImageSizeFromBase64(data.B64Json); err == nil {
				logger.Debugf(ctx, "image %d: %dx%d", i+1, width, height)
			}
		}
		payloads = append(payloads, data.B64Json)
	}
	return payloads, nil
}

func (c *Client) upstreamError(ctx context.Context, statusCode int, responseBody []byte) *GenerationError {
	if config.DebugEnabled {
		logger.Debugf(ctx, "upstream error response, status code: %d, body: %s", statusCode, string(responseBody))
	}
	return c.classified(relayErrorFromBody(statusCode, responseBody))
}

// relayErrorFromBody reads an OpenAI style error body. Bodies that are not JSON keep the
// generic upstream error with an empty message.
func relayErrorFromBody(statusCode int, responseBody []byte) *relaymodel.ErrorWithStatusCode {
	errWithStatusCode := &relaymodel.ErrorWithStatusCode{
		Error: relaymodel.Error{
			Type:  "upstream_error",
			Code:  "bad_response_status_code",
			Param: fmt.Sprintf("%d", statusCode),
		},
		StatusCode: statusCode,
	}
	var errResponse relaymodel.GeneralErrorResponse
	if err := json.Unmarshal(responseBody, &errResponse); err != nil {
		return errWithStatusCode
	}
	if errResponse.Error.Message != "" {
		errWithStatusCode.Error = errResponse.Error
	} else {
		errWithStatusCode.Error.Message = errResponse.ToMessage()
	}
	return errWithStatusCode
}

func (c *Client) classified(upstream *relaymodel.ErrorWithStatusCode) *GenerationError {
	kind := KindUpstream
	if IsAuthFailure(upstream.StatusCode, &upstream.Error, c.cfg.AuthKeywords) {
		kind = KindAuth
	}
	genErr := newGenerationError(kind, upstreamReason(upstream.StatusCode, upstream.Message), nil)
	genErr.StatusCode = upstream.StatusCode
	genErr.Upstream = &upstream.Error
	return genErr
}
