package extraction

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// Formats accepted on upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageInfo describes a decoded upload.
type imageInfo struct {
	Format string
	Width  int
	Height int
	Bytes  int
}

// decodeImage checks that payload is base64 for a recognised image format and
// returns the payload normalised to standard padded base64. A data URL prefix
// ("data:image/png;base64,") is tolerated.
func decodeImage(payload string) (string, imageInfo, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return "", imageInfo{}, fmt.Errorf("empty image payload")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", imageInfo{}, fmt.Errorf("invalid base64: %w", err)
		}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", imageInfo{}, fmt.Errorf("invalid image data: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", imageInfo{}, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}

	info := imageInfo{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: len(raw)}
	return base64.StdEncoding.EncodeToString(raw), info, nil
}
