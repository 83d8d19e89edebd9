package imagegen

import (
	relaymodel "github.com/ezlinkai/ai-image-generator/relay/model"
	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration_error"
	KindAuth          ErrorKind = "auth_error"
	KindUpstream      ErrorKind = "upstream_error"
	KindEmptyResult   ErrorKind = "empty_result_error"
	KindUnknown       ErrorKind = "unknown_error"
)

const messagePrefix = "Failed to generate images: "

const (
	MissingKeyMessage      = "API_KEY environment variable is not set. Please set it to your OpenRouter key."
	UpstreamFallbackReason = "Failed to fetch from OpenRouter."
	EmptyResultReason      = "The API did not return any images."
)

// GenerationError is the only error type GenerateImages returns.
// Message is ready to be shown to the user as is.
type GenerationError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Upstream   *relaymodel.Error
	cause      error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.cause
}

func newGenerationError(kind ErrorKind, reason string, cause error) *GenerationError {
	return &GenerationError{
		Kind:    kind,
		Message: messagePrefix + reason,
		cause:   cause,
	}
}

// KindOf returns the kind of a GenerationError anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}
