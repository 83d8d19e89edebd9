package service

import (
	"fmt"
	"strings"
	"time"
)

const isoMillisLayout = "2006-01-02T15:04:05.000Z"

var filenameReplacer = strings.NewReplacer(":", "-", ".", "-")

// DownloadFilename names a downloaded image ai-image-<timestamp>[-NN].jpg.
// The index suffix is 1-based and only added when the batch holds more than one image.
func DownloadFilename(ts time.Time, index int, total int) string {
	parts := []string{"ai-image", filenameReplacer.Replace(ts.UTC().Format(isoMillisLayout))}
	if total > 1 {
		parts = append(parts, fmt.Sprintf("%02d", index+1))
	}
	return strings.Join(parts, "-") + ".jpg"
}
