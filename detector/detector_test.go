package detector

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/preprocess"
)

// scriptedOutput is a feature-major (1, 6, 4) output for a two-class model:
//
//	anchor 0: class 1 @ 0.9, centered on the canvas
//	anchor 1: class 1 @ 0.8, almost the same box as anchor 0
//	anchor 2: below any threshold
//	anchor 3: class 0 @ 0.7, partly in the top letterbox band
func scriptedOutput() inference.RawOutput {
	rows := [][]float32{
		{320, 320, 100, 50, 0.1, 0.9},
		{322, 320, 100, 50, 0.05, 0.8},
		{100, 100, 10, 10, 0.1, 0.1},
		{10, 150, 40, 40, 0.7, 0.2},
	}
	data := make([]float32, 6*len(rows))
	for n, row := range rows {
		for f, v := range row {
			data[f*len(rows)+n] = v
		}
	}
	return inference.RawOutput{Data: data, Shape: []int64{1, 6, 4}}
}

func frame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func newDetector(t *testing.T, engine inference.Engine, options Options) *Detector {
	t.Helper()
	d, err := New(Args{
		Engine:     engine,
		InputSize:  640,
		NumClasses: 2,
		Layout:     postprocess.LayoutFeatureMajor,
		Options:    options,
	})
	require.NoError(t, err)
	return d
}

func TestDetect_Pipeline(t *testing.T) {
	var seen []int64
	engine := inference.EngineFunc(func(ctx context.Context, input *preprocess.Tensor) (*inference.RawOutput, error) {
		seen = input.Shape
		out := scriptedOutput()
		return &out, nil
	})

	d := newDetector(t, engine, Options{
		ConfThreshold: 0.25,
		NMS:           postprocess.DefaultNMSConfig(0.45),
		Clamp:         true,
	})

	result, err := d.Detect(context.Background(), frame(1280, 720))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 640, 640}, seen)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 0.5, result.Letterbox.Scale)
	assert.Equal(t, 140, result.Letterbox.PadTop)

	require.Len(t, result.Detections, 2)

	first := result.Detections[0]
	assert.Equal(t, 1, first.ClassID)
	assert.Equal(t, float32(0.9), first.Confidence)
	assert.Equal(t, 0, first.Anchor)
	assert.Equal(t, images.Box{CX: 640, CY: 360, W: 200, H: 100}, first.Box)

	second := result.Detections[1]
	assert.Equal(t, 0, second.ClassID)
	assert.Equal(t, 3, second.Anchor)
	assert.Equal(t, images.Box{CX: 30, CY: 30, W: 60, H: 60}, second.Box, "clamped to the image")
}

func TestDetect_WithoutNMSOrClamp(t *testing.T) {
	d := newDetector(t, inference.StaticEngine(scriptedOutput()), Options{ConfThreshold: 0.25})

	result, err := d.Detect(context.Background(), frame(1280, 720))
	require.NoError(t, err)

	require.Len(t, result.Detections, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{
		result.Detections[0].Anchor,
		result.Detections[1].Anchor,
		result.Detections[2].Anchor,
	})
	assert.Equal(t, images.Box{CX: 20, CY: 20, W: 80, H: 80}, result.Detections[2].Box)
}

func TestDetect_Errors(t *testing.T) {
	boom := errors.New("boom")
	failing := inference.EngineFunc(func(context.Context, *preprocess.Tensor) (*inference.RawOutput, error) {
		return nil, boom
	})
	_, err := newDetector(t, failing, Options{}).Detect(context.Background(), frame(64, 64))
	assert.True(t, errors.Is(err, boom))

	wrongShape := inference.StaticEngine(inference.RawOutput{Data: make([]float32, 28), Shape: []int64{1, 7, 4}})
	_, err = newDetector(t, wrongShape, Options{}).Detect(context.Background(), frame(64, 64))
	assert.True(t, errors.Is(err, postprocess.ErrInvalidShape))

	d := newDetector(t, inference.StaticEngine(scriptedOutput()), Options{})
	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, errors.Is(err, preprocess.ErrInvalidInput))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, frame(64, 64))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Args{InputSize: 640, NumClasses: 2, Layout: postprocess.LayoutFeatureMajor})
	assert.Error(t, err)

	engine := inference.StaticEngine(scriptedOutput())
	_, err = New(Args{Engine: engine, InputSize: 0, NumClasses: 2, Layout: postprocess.LayoutFeatureMajor})
	assert.True(t, errors.Is(err, preprocess.ErrInvalidInput))

	_, err = New(Args{Engine: engine, InputSize: 640, NumClasses: 2, Layout: "sideways"})
	assert.True(t, errors.Is(err, postprocess.ErrUnsupportedLayout))
}

func TestBatchDetect_SerializesEngine(t *testing.T) {
	var inFlight, maxInFlight, calls int32
	engine := inference.EngineFunc(func(ctx context.Context, _ *preprocess.Tensor) (*inference.RawOutput, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		atomic.AddInt32(&calls, 1)
		time.Sleep(time.Millisecond)
		out := scriptedOutput()
		return &out, nil
	})

	d := newDetector(t, engine, Options{ConfThreshold: 0.25, NMS: postprocess.DefaultNMSConfig(0.45)})

	imgs := []image.Image{frame(1280, 720), frame(640, 640), frame(320, 480), frame(100, 50), frame(64, 64), frame(33, 17)}
	results, err := d.BatchDetect(context.Background(), imgs, 4)
	require.NoError(t, err)
	require.Len(t, results, len(imgs))

	assert.Equal(t, int32(len(imgs)), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight), "engine runs must not overlap")
	for i, r := range results {
		assert.Equal(t, imgs[i].Bounds().Dx(), r.Letterbox.OriginalWidth, "results keep input order")
	}

	_, err = d.BatchDetect(context.Background(), append(imgs, image.NewRGBA(image.Rectangle{})), 0)
	assert.True(t, errors.Is(err, preprocess.ErrInvalidInput))
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("num_classes: 2\nconf_threshold: 0.5\nclamp: false\npad_color: \"#000000\"\nlog_level: debug\n"))
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	d, err := FromConfig(cfg, inference.StaticEngine(scriptedOutput()), zap.New(core))
	require.NoError(t, err)

	result, err := d.Detect(context.Background(), frame(1280, 720))
	require.NoError(t, err)
	require.Len(t, result.Detections, 2)
	assert.Equal(t, images.Box{CX: 20, CY: 20, W: 80, H: 80}, result.Detections[1].Box)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, result.Letterbox.Canvas.RGBAAt(0, 0), "pad color from config")
	assert.Equal(t, 1, logs.FilterMessage("detected").Len())

	assert.NoError(t, d.Close())
}

type closeRecorder struct {
	inference.Engine
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestClose(t *testing.T) {
	engine := &closeRecorder{Engine: inference.StaticEngine(scriptedOutput())}
	d := newDetector(t, engine, Options{})
	require.NoError(t, d.Close())
	assert.True(t, engine.closed)
}
