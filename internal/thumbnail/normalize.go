package thumbnail

import (
	"bytes"
	"fmt"
	"image/color"
	"os"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support

	"skillgoblin/internal/logging"
)

const (
	// Width and Height are the fixed thumbnail box.
	Width  = 480
	Height = 270
)

// Normalize decodes an image of any supported format and returns it as a
// Width x Height PNG, cropped to cover the box around its center.
func Normalize(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding thumbnail: %w", err)
	}

	thumb := imaging.Fill(img, Width, Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// placeholderColor is the flat fill used when no placeholder file is available.
var placeholderColor = color.NRGBA{R: 0x2d, G: 0x37, B: 0x48, A: 0xff}

// LoadPlaceholder reads the placeholder image at path, or renders a flat
// Width x Height PNG when the file is missing or unreadable.
func LoadPlaceholder(path string) []byte {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return data
		}
		logging.Warn("Placeholder image %s unavailable (%v), using generated placeholder", path, err)
	}

	var buf bytes.Buffer
	img := imaging.New(Width, Height, placeholderColor)
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		// encoding an in-memory NRGBA image cannot fail short of OOM
		logging.Error("Failed to render placeholder: %v", err)
		return nil
	}
	return buf.Bytes()
}
