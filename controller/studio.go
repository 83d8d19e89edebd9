package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ezlinkai/ai-image-generator/common"
	"github.com/ezlinkai/ai-image-generator/common/ctxkey"
	"github.com/ezlinkai/ai-image-generator/common/helper"
	"github.com/ezlinkai/ai-image-generator/common/image"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/ezlinkai/ai-image-generator/model"
	"github.com/ezlinkai/ai-image-generator/relay/imagegen"
	"github.com/ezlinkai/ai-image-generator/service"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// StudioController serves the image generation page API. One shell per browser session.
type StudioController struct {
	shells    *service.ShellManager
	modelName string
	now       func() time.Time
}

func NewStudioController(shells *service.ShellManager, modelName string) *StudioController {
	return &StudioController{
		shells:    shells,
		modelName: modelName,
		now:       time.Now,
	}
}

func (s *StudioController) shell(c *gin.Context) (*service.Shell, bool) {
	shell, err := s.shells.Get(c.Request.Context(), c.GetString(ctxkey.SessionId))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load shell state: "+err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": helper.MessageWithRequestId("failed to load session state", c.GetString(logger.RequestIdKey)),
		})
		return nil, false
	}
	return shell, true
}

func (s *StudioController) respondState(c *gin.Context, statusCode int, state service.ShellState, message string) {
	c.JSON(statusCode, gin.H{
		"success": statusCode == http.StatusOK,
		"message": message,
		"data":    newShellView(state),
	})
}

func (s *StudioController) GetState(c *gin.Context) {
	shell, ok := s.shell(c)
	if !ok {
		return
	}
	s.respondState(c, http.StatusOK, shell.Snapshot(), "")
}

// Generate validates the prompt and count, runs one generation and replies with the resulting page state.
func (s *StudioController) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": bindingMessage(err),
		})
		return
	}
	shell, ok := s.shell(c)
	if !ok {
		return
	}
	count := req.Count
	if count == 0 {
		count = shell.Snapshot().Count
	}

	ctx := imagegen.WithReferer(c.Request.Context(), requestOrigin(c))
	startTime := s.now()
	state, err := shell.Submit(ctx, req.Prompt, count)
	if errors.Is(err, service.ErrGenerationInProgress) {
		s.respondState(c, http.StatusConflict, state, "A generation is already in progress.")
		return
	}
	statusCode := generateStatusCode(state, err)
	if statusCode != http.StatusBadRequest {
		s.recordGeneration(c, req.Prompt, count, s.now().Sub(startTime), state, err)
	}
	s.respondState(c, statusCode, state, state.Error)
}

func (s *StudioController) recordGeneration(c *gin.Context, prompt string, count int, duration time.Duration, state service.ShellState, err error) {
	log := model.NewGenerationLog(
		c.GetString(logger.RequestIdKey),
		c.GetString(ctxkey.SessionId),
		s.modelName,
		prompt,
		count,
		duration,
	)
	log.ImagesReturned = len(state.Images)
	if err != nil {
		log.ErrorKind = state.ErrorKind
		var genErr *imagegen.GenerationError
		if errors.As(err, &genErr) {
			log.StatusCode = genErr.StatusCode
		}
	}
	model.RecordGenerationLogAsync(c.Request.Context(), log)
}

func generateStatusCode(state service.ShellState, err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch state.ErrorKind {
	case "validation_error":
		return http.StatusBadRequest
	case string(imagegen.KindAuth):
		return http.StatusUnauthorized
	case string(imagegen.KindUpstream), string(imagegen.KindEmptyResult):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func requestOrigin(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}

// DownloadImage serves image index of the current batch as an attachment.
func (s *StudioController) DownloadImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid image index",
		})
		return
	}
	shell, ok := s.shell(c)
	if !ok {
		return
	}
	filename, data, err := shell.Download(index, s.now())
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, service.ErrImageNotFound) {
			statusCode = http.StatusNotFound
		}
		c.JSON(statusCode, gin.H{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, image.DetectMimeType(data), data)
}

// SelectKey marks the credential as present. There is no verification; a bad key surfaces on the next generation.
func (s *StudioController) SelectKey(c *gin.Context) {
	shell, ok := s.shell(c)
	if !ok {
		return
	}
	state, err := shell.SelectKey(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), err.Error())
		s.respondState(c, http.StatusInternalServerError, state, "Could not open key selection.")
		return
	}
	s.respondState(c, http.StatusOK, state, "")
}

func (s *StudioController) DismissPromo(c *gin.Context) {
	shell, ok := s.shell(c)
	if !ok {
		return
	}
	s.respondState(c, http.StatusOK, shell.DismissPromo(c.Request.Context()), "")
}
