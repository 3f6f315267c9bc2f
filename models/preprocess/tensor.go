package preprocess

import (
	"image"
)

// Tensor is a dense float32 NCHW buffer with a batch dimension of 1.
type Tensor struct {
	// Data holds the samples, channel planes in R, G, B order.
	Data []float32
	// Shape is always [1, 3, height, width].
	Shape []int64
}

// Width returns the spatial width of the tensor.
func (t *Tensor) Width() int {
	return int(t.Shape[3])
}

// Height returns the spatial height of the tensor.
func (t *Tensor) Height() int {
	return int(t.Shape[2])
}

// ToTensor converts an 8-bit image into a channel-first tensor normalized to [0, 1].
//
// Arguments:
//   - img: The canvas to pack, typically LetterboxResult.Canvas.
//
// Returns:
//   - *Tensor: Shape [1, 3, H, W], every sample divided by 255.
func ToTensor(img image.Image) *Tensor {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	channelSize := width * height

	data := make([]float32, 3*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	if rgba, ok := img.(*image.RGBA); ok {
		i := 0
		for y := 0; y < height; y++ {
			row := rgba.Pix[rgba.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := 0; x < width; x++ {
				p := row[x*4:]
				red[i] = float32(p[0]) / 255.0
				green[i] = float32(p[1]) / 255.0
				blue[i] = float32(p[2]) / 255.0
				i++
			}
		}
	} else {
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				red[i] = float32(r>>8) / 255.0
				green[i] = float32(g>>8) / 255.0
				blue[i] = float32(b>>8) / 255.0
				i++
			}
		}
	}

	return &Tensor{
		Data:  data,
		Shape: []int64{1, 3, int64(height), int64(width)},
	}
}
