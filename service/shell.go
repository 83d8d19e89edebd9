package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ezlinkai/ai-image-generator/common/config"
	"github.com/ezlinkai/ai-image-generator/common/image"
	"github.com/ezlinkai/ai-image-generator/common/logger"
	"github.com/ezlinkai/ai-image-generator/relay/imagegen"
	"github.com/pkg/errors"
)

const (
	EmptyPromptMessage = "Please enter a prompt."
	AuthErrorMessage   = "Your API key is invalid or was not found. Please select a valid key."
	UnexpectedMessage  = "An unexpected error occurred."
)

const MinImages = 1

var (
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrEmptyPrompt          = errors.New(EmptyPromptMessage)
	ErrInvalidCount         = errors.New("invalid image count")
	ErrImageNotFound        = errors.New("image not found")
)

// ImageGenerator is implemented by *imagegen.Client.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string, count int) ([]string, error)
}

type GeneratedImage struct {
	EncodedData  string `json:"encoded_data"`
	SourcePrompt string `json:"source_prompt"`
}

// Src is the inline data URL the page displays and downloads.
func (i GeneratedImage) Src() string {
	return image.DataURL(image.DefaultMimeType, i.EncodedData)
}

type ShellState struct {
	Prompt         string           `json:"prompt"`
	Count          int              `json:"count"`
	Loading        bool             `json:"loading"`
	Error          string           `json:"error,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	Images         []GeneratedImage `json:"images"`
	HasCredential  bool             `json:"has_credential"`
	ShowPromo      bool             `json:"show_promo"`
	BatchTimestamp int64            `json:"batch_timestamp,omitempty"` // unit: millisecond
	UpdatedAt      int64            `json:"updated_at"`
}

func NewShellState(hasCredential bool) ShellState {
	return ShellState{
		Count:         MinImages,
		Images:        []GeneratedImage{},
		HasCredential: hasCredential,
		ShowPromo:     true,
	}
}

func (s ShellState) clone() ShellState {
	images := make([]GeneratedImage, len(s.Images))
	copy(images, s.Images)
	s.Images = images
	return s
}

// Shell holds the page state of one browser session.
type Shell struct {
	mu        sync.Mutex
	state     ShellState
	generator ImageGenerator
	selector  KeySelector

	authKeywords string
	maxImages    int
	now          func() time.Time
	onChange     func(ctx context.Context, state ShellState)
}

type ShellOption func(*Shell)

// WithAuthKeywords sets the newline separated keywords used to spot credential errors
// that carry no kind.
func WithAuthKeywords(keywords string) ShellOption {
	return func(s *Shell) {
		s.authKeywords = keywords
	}
}

func WithMaxImages(n int) ShellOption {
	return func(s *Shell) {
		if n >= MinImages {
			s.maxImages = n
		}
	}
}

func WithClock(now func() time.Time) ShellOption {
	return func(s *Shell) {
		s.now = now
	}
}

// WithOnChange registers a callback invoked with a copy of the state after every transition.
func WithOnChange(fn func(ctx context.Context, state ShellState)) ShellOption {
	return func(s *Shell) {
		s.onChange = fn
	}
}

// WithState restores a previously saved state. A restored shell is never loading.
func WithState(state ShellState) ShellOption {
	return func(s *Shell) {
		s.state = state.clone()
		s.state.Loading = false
	}
}

func NewShell(generator ImageGenerator, selector KeySelector, opts ...ShellOption) *Shell {
	s := &Shell{
		state:        NewShellState(true),
		generator:    generator,
		selector:     selector,
		authKeywords: config.AuthErrorKeywords,
		maxImages:    config.MaxImagesPerRequest,
		now:          time.Now,
	}
	if s.maxImages < MinImages {
		s.maxImages = MinImages
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shell) MaxImages() int {
	return s.maxImages
}

func (s *Shell) Snapshot() ShellState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Shell) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Loading
}

// must hold s.mu
func (s *Shell) changed(ctx context.Context) ShellState {
	s.state.UpdatedAt = s.now().Unix()
	snapshot := s.state.clone()
	if s.onChange != nil {
		s.onChange(ctx, snapshot)
	}
	return snapshot
}

func (s *Shell) countMessage() string {
	return fmt.Sprintf("Please choose between %d and %d images.", MinImages, s.maxImages)
}

// Submit validates the input and runs one generation. The returned state is the one
// after the generation finished; the returned error is the validation or generation error.
func (s *Shell) Submit(ctx context.Context, prompt string, count int) (ShellState, error) {
	s.mu.Lock()
	if s.state.Loading {
		snapshot := s.state.clone()
		s.mu.Unlock()
		return snapshot, ErrGenerationInProgress
	}
	s.state.Prompt = prompt
	if strings.TrimSpace(prompt) == "" {
		s.state.Error = EmptyPromptMessage
		s.state.ErrorKind = "validation_error"
		snapshot := s.changed(ctx)
		s.mu.Unlock()
		return snapshot, ErrEmptyPrompt
	}
	if count < MinImages || count > s.maxImages {
		message := s.countMessage()
		s.state.Error = message
		s.state.ErrorKind = "validation_error"
		snapshot := s.changed(ctx)
		s.mu.Unlock()
		return snapshot, errors.Wrap(ErrInvalidCount, message)
	}

	s.state.Count = count
	s.state.Loading = true
	s.state.Error = ""
	s.state.ErrorKind = ""
	s.state.Images = []GeneratedImage{}
	s.changed(ctx)
	s.mu.Unlock()

	payloads, err := s.generate(ctx, prompt, count)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	// the request may be gone by now; the state still has to be saved
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		s.applyError(ctx, err)
		return s.changed(ctx), err
	}

	images := make([]GeneratedImage, 0, len(payloads))
	for _, payload := range payloads {
		images = append(images, GeneratedImage{EncodedData: payload, SourcePrompt: prompt})
	}
	s.state.Images = images
	s.state.BatchTimestamp = s.now().UnixMilli()
	return s.changed(ctx), nil
}

// generate calls the generator without holding s.mu. A panic clears the loading flag
// before it is passed on, so the session can submit again.
func (s *Shell) generate(ctx context.Context, prompt string, count int) ([]string, error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.state.Loading = false
			s.state.Error = UnexpectedMessage
			s.state.ErrorKind = string(imagegen.KindUnknown)
			s.changed(context.WithoutCancel(ctx))
			s.mu.Unlock()
			panic(r)
		}
	}()
	return s.generator.GenerateImages(ctx, prompt, count)
}

// must hold s.mu
func (s *Shell) applyError(ctx context.Context, err error) {
	kind := imagegen.KindOf(err)
	switch {
	case imagegen.IsAuthError(err, s.authKeywords):
		s.state.Error = AuthErrorMessage
		s.state.ErrorKind = string(imagegen.KindAuth)
		s.state.HasCredential = false
		logger.Warnf(ctx, "credential rejected, asking for a new key: %s", err.Error())
	case kind != "":
		s.state.Error = err.Error()
		s.state.ErrorKind = string(kind)
	default:
		s.state.Error = err.Error()
		if s.state.Error == "" {
			s.state.Error = UnexpectedMessage
		}
		s.state.ErrorKind = string(imagegen.KindUnknown)
		logger.Errorf(ctx, "unexpected generation error: %s", err.Error())
	}
}

// SelectKey opens the key selection hook and assumes a key was chosen.
func (s *Shell) SelectKey(ctx context.Context) (ShellState, error) {
	if err := s.selector.OpenSelectKey(ctx); err != nil {
		return s.Snapshot(), errors.Wrap(err, "open key selection")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.HasCredential = true
	s.state.Error = ""
	s.state.ErrorKind = ""
	return s.changed(ctx), nil
}

// RefreshCredential asks the selector whether a key is currently available.
func (s *Shell) RefreshCredential(ctx context.Context) (ShellState, error) {
	hasKey, err := s.selector.HasSelectedKey(ctx)
	if err != nil {
		return s.Snapshot(), errors.Wrap(err, "check selected key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.HasCredential == hasKey {
		return s.state.clone(), nil
	}
	s.state.HasCredential = hasKey
	return s.changed(ctx), nil
}

func (s *Shell) DismissPromo(ctx context.Context) ShellState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.ShowPromo {
		return s.state.clone()
	}
	s.state.ShowPromo = false
	return s.changed(ctx)
}

// Download returns the file name and bytes for the image at index (0-based) of the current batch.
func (s *Shell) Download(index int, now time.Time) (string, []byte, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.state.Images) {
		s.mu.Unlock()
		return "", nil, ErrImageNotFound
	}
	img := s.state.Images[index]
	total := len(s.state.Images)
	s.mu.Unlock()

	data, err := image.Decode(img.EncodedData)
	if err != nil {
		return "", nil, err
	}
	return DownloadFilename(now, index, total), data, nil
}
