package ecat

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
)

const octetStream = "application/octet-stream"

// ImageInfo describes an upload without decoding its pixels.
type ImageInfo struct {
	Width    int
	Height   int
	Format   string
	MIMEType string
}

// ValidateImage sniffs the content type and reads only the image header:
//   - content must sniff as image/*, or as opaque binary that a registered
//     decoder recognises (TIFF has no sniffing signature)
//   - a registered decoder must understand the header
//   - both sides must be at least minSide pixels
//
// Uploads that fail are reported with ErrUnreadableImage.
func ValidateImage(data []byte, minSide int) (*ImageInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnreadableImage)
	}
	ct := http.DetectContentType(data)
	sniffed := strings.HasPrefix(ct, "image/")
	if !sniffed && ct != octetStream {
		return nil, fmt.Errorf("%w: content type %s", ErrUnreadableImage, ct)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if !sniffed {
			return nil, fmt.Errorf("%w: content type %s", ErrUnreadableImage, ct)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if !sniffed {
		ct = "image/" + format
	}
	if cfg.Width < minSide || cfg.Height < minSide {
		slog.Debug("ecat: image too small", "width", cfg.Width, "height", cfg.Height, "min", minSide)
		return nil, fmt.Errorf("%w: %dx%d smaller than %dpx", ErrUnreadableImage, cfg.Width, cfg.Height, minSide)
	}
	return &ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format, MIMEType: ct}, nil
}
