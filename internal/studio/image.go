package studio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrInvalidImage = errors.New("invalid image")

// ImagePayload is an uploaded image held in memory for one session.
type ImagePayload struct {
	MimeType string
	Data     []byte
}

func (p ImagePayload) Clone() ImagePayload {
	if p.Data == nil {
		return p
	}
	p.Data = append([]byte(nil), p.Data...)
	return p
}

// NewImagePayload sniffs the MIME type when the declared one is missing
// or generic, and rejects anything that is not an image.
func NewImagePayload(declaredMime string, data []byte) (ImagePayload, error) {
	if len(data) == 0 {
		return ImagePayload{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	mimeType := normalizeMime(declaredMime)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMime(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return ImagePayload{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidImage, mimeType)
	}

	return ImagePayload{MimeType: mimeType, Data: data}, nil
}

// ParseDataURL decodes a data:<mime>;base64,<payload> URI.
func ParseDataURL(value string) (ImagePayload, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ImagePayload{}, fmt.Errorf("%w: empty data url", ErrInvalidImage)
	}

	const prefix = "data:"
	if !strings.HasPrefix(value, prefix) {
		return ImagePayload{}, fmt.Errorf("%w: not a data url", ErrInvalidImage)
	}

	meta, payload, ok := strings.Cut(value, ",")
	if !ok {
		return ImagePayload{}, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}

	metaParts := strings.Split(strings.TrimPrefix(meta, prefix), ";")
	if len(metaParts) < 2 || metaParts[len(metaParts)-1] != "base64" {
		return ImagePayload{}, fmt.Errorf("%w: only base64 data urls are supported", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImagePayload{}, fmt.Errorf("%w: decode base64: %v", ErrInvalidImage, err)
	}

	return NewImagePayload(metaParts[0], data)
}

func (p ImagePayload) IsZero() bool {
	return len(p.Data) == 0
}

func (p ImagePayload) DataURL() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("data:%s;base64,%s", p.MimeType, base64.StdEncoding.EncodeToString(p.Data))
}

// DecodeImageURL returns the bytes of an inline image URL. Remote URLs
// report ok=false so callers can hand the URL on instead.
func DecodeImageURL(imageURL string) (ImagePayload, bool, error) {
	if !strings.HasPrefix(strings.TrimSpace(imageURL), "data:") {
		return ImagePayload{}, false, nil
	}
	p, err := ParseDataURL(imageURL)
	if err != nil {
		return ImagePayload{}, true, err
	}
	return p, true, nil
}

func normalizeMime(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return strings.ToLower(value)
}
