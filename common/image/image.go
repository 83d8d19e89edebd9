package image

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// Regex to match data URL pattern
var dataURLPattern = regexp.MustCompile(`^data:image/([^;]+);base64,`)

// DefaultMimeType is what generated payloads are displayed and saved as.
const DefaultMimeType = "image/jpeg"

var ErrEmptyPayload = errors.New("image payload is empty")

var readerPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Reader{}
	},
}

// StripDataURL removes a leading data:image/...;base64, prefix if present.
func StripDataURL(encoded string) string {
	return dataURLPattern.ReplaceAllString(strings.TrimSpace(encoded), "")
}

// DataURL builds the inline source for a base64 payload.
func DataURL(mimeType string, payload string) string {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return "data:" + mimeType + ";base64," + StripDataURL(payload)
}

// upstreams differ on padding and alphabet
var payloadEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// Decode returns the raw bytes of a base64 payload, with or without a data URL prefix.
// Padded, unpadded and URL-safe payloads are all accepted.
func Decode(payload string) ([]byte, error) {
	payload = StripDataURL(payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	var firstErr error
	for _, encoding := range payloadEncodings {
		decoded, err := encoding.DecodeString(payload)
		if err == nil {
			return decoded, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, errors.Wrap(firstErr, "decode base64 image")
}

// Validate reports whether payload is well-formed base64.
func Validate(payload string) error {
	_, err := Decode(payload)
	return err
}

// DetectMimeType sniffs the decoded bytes and falls back to DefaultMimeType
// when the content is not recognised as an image.
func DetectMimeType(decoded []byte) string {
	contentType := http.DetectContentType(decoded)
	if strings.HasPrefix(contentType, "image/") {
		return contentType
	}
	return DefaultMimeType
}

func GetImageSizeFromBase64(encoded string) (width int, height int, err error) {
	decoded, err := Decode(encoded)
	if err != nil {
		return 0, 0, err
	}

	reader := readerPool.Get().(*bytes.Reader)
	defer readerPool.Put(reader)
	reader.Reset(decoded)

	img, _, err := image.DecodeConfig(reader)
	if err != nil {
		return 0, 0, err
	}

	return img.Width, img.Height, nil
}
