// Package images - Image definition and decoding.
package images

import (
	"bytes"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// SupportedExtensions lists the file extensions Load accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes encoded image bytes into an image.Image.
//
// WebP payloads go through chai2010/webp; everything else is decoded with EXIF
// orientation applied, so camera photos come out upright before letterboxing.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the data is empty or cannot be decoded.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}

	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode webp")
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}

// DecodeImage decodes an Image and checks its declared dimensions when present.
//
// Arguments:
//   - img: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if decoding fails or the decoded size disagrees with Width/Height.
func DecodeImage(img *Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	decoded, err := Decode(img.Data)
	if err != nil {
		return nil, err
	}
	b := decoded.Bounds()
	if img.Width > 0 && img.Height > 0 && (b.Dx() != img.Width || b.Dy() != img.Height) {
		return nil, errors.Errorf("decoded size %dx%d does not match declared %dx%d",
			b.Dx(), b.Dy(), img.Width, img.Height)
	}
	return decoded, nil
}

// Load reads and decodes an image file.
//
// Arguments:
//   - path: Path to a .jpg, .jpeg, .png or .webp file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the extension is unsupported or the file cannot be read.
func Load(path string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !isSupported(ext) {
		return nil, errors.Errorf("unsupported file extension: %s. Supported extensions: %v",
			ext, SupportedExtensions)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	img, err := DecodeImage(&Image{Format: formatOf(ext), Data: data})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return img, nil
}

func formatOf(ext string) ImageFormat {
	switch ext {
	case ".png":
		return FormatPNG
	case ".webp":
		return FormatWebP
	default:
		return FormatJPEG
	}
}

func isSupported(ext string) bool {
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// isWebP checks for the RIFF....WEBP container header.
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
