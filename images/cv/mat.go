// Package cv - OpenCV frame adapters for the letterbox pipeline.
package cv

import (
	"crypto/md5"
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/models/preprocess"
)

// FromMat converts an 8-bit BGR, BGRA or grayscale Mat into an RGB image.
//
// Arguments:
//   - mat: The OpenCV frame. It is not modified.
//
// Returns:
//   - image.Image: The converted image.
//   - error: preprocess.ErrInvalidInput for an empty Mat, or the conversion error.
func FromMat(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.Wrap(preprocess.ErrInvalidInput, "empty mat")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "convert %s mat", mat.Type())
	}
	return img, nil
}

// Checksum returns a hex MD5 of the Mat's pixel data, "empty" for an empty Mat. Frames
// with equal checksums carry identical pixels.
func Checksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "invalid"
	}
	return fmt.Sprintf("%x", md5.Sum(data))
}
