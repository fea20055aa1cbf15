package pdf

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

const (
	dataURLScheme = "data:"
	base64Marker  = ";base64,"
)

// ErrNotImageDataURL is returned for anything other than a base64 image data URL.
var ErrNotImageDataURL = errors.New("invalid image format - must be base64 data URL")

// IsImageDataURL reports whether s looks like a data:image/...;base64, URL.
func IsImageDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLScheme+"image/") && strings.Contains(s, base64Marker)
}

// ImageDataURLText returns decoded bytes as text when they hold an image
// data URL, which happens when a data URL was written into a bytea column.
func ImageDataURLText(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte(dataURLScheme+"image/")) {
		return "", false
	}
	text := string(trimmed)
	return text, IsImageDataURL(text)
}

// ParseImageDataURL splits a base64 image data URL into its MIME type and
// decoded bytes.
func ParseImageDataURL(s string) (string, []byte, error) {
	if !IsImageDataURL(s) {
		return "", nil, ErrNotImageDataURL
	}

	header, payload, _ := strings.Cut(s, base64Marker)
	mimeType := strings.TrimPrefix(header, dataURLScheme)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, errors.Wrap(ErrNotImageDataURL, err.Error())
	}
	return normalizeMIME(mimeType), data, nil
}
