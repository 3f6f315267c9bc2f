// Package detector - End-to-end letterbox, inference and decode pipeline.
package detector

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/preprocess"
)

// Options tune what happens to decoded candidates.
type Options struct {
	// ConfThreshold is the strict per-anchor confidence cutoff.
	ConfThreshold float32
	// NMS suppresses overlapping detections; nil keeps every candidate.
	NMS *postprocess.NMSConfig
	// Clamp limits original-space boxes to the image bounds.
	Clamp bool
}

// Args configure a Detector.
type Args struct {
	// Engine runs the model. The Detector takes ownership and closes it.
	Engine inference.Engine
	// InputSize is the square model input side.
	InputSize int
	// PadColor fills the letterbox border.
	PadColor color.RGBA
	// NumClasses is the model class count.
	NumClasses int
	// Layout is the raw output memory order.
	Layout postprocess.Layout
	// Options tune post-decode filtering.
	Options Options
	// Logger receives pipeline events; nil disables logging.
	Logger *zap.Logger
}

// Result holds the detections of one image, mapped back to its original coordinates.
type Result struct {
	// ID identifies this run in logs.
	ID uuid.UUID
	// Detections are ordered by confidence when NMS is enabled, by anchor otherwise.
	Detections []postprocess.Detection
	// Candidates is the decoded count before NMS.
	Candidates int
	// Letterbox is the transform applied to the input.
	Letterbox *preprocess.LetterboxResult
	// Duration is the wall time of the whole pipeline.
	Duration time.Duration
}

// Detector runs images through letterbox, engine, decoder and NMS.
//
// Preprocessing and decoding run concurrently across calls; engine access is serialized.
type Detector struct {
	mu           sync.Mutex
	engine       inference.Engine
	preprocessor *preprocess.Preprocessor
	decoder      *postprocess.Decoder
	options      Options
	logger       *zap.Logger
}

// New creates a Detector.
//
// Arguments:
//   - args: The pipeline configuration.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the engine is missing or the decoder cannot be built.
func New(args Args) (*Detector, error) {
	if args.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if args.InputSize <= 0 {
		return nil, errors.Wrapf(preprocess.ErrInvalidInput, "input size must be positive, got %d", args.InputSize)
	}

	decoder, err := postprocess.NewDecoder(args.NumClasses, args.Layout)
	if err != nil {
		return nil, errors.Wrap(err, "create decoder")
	}

	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	modelConfig := preprocess.GetYOLOConfig(args.InputSize)
	if args.PadColor != (color.RGBA{}) {
		modelConfig.LetterboxColor = args.PadColor
	}

	return &Detector{
		engine:       args.Engine,
		preprocessor: preprocess.NewPreprocessor(modelConfig, logger),
		decoder:      decoder,
		options:      args.Options,
		logger:       logger,
	}, nil
}

// FromConfig creates a Detector from a validated configuration.
//
// Arguments:
//   - cfg: The configuration.
//   - engine: The inference engine.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the configuration cannot be applied.
func FromConfig(cfg *config.Config, engine inference.Engine, logger *zap.Logger) (*Detector, error) {
	pad, err := cfg.PadRGBA()
	if err != nil {
		return nil, err
	}

	options := Options{ConfThreshold: cfg.ConfThreshold, Clamp: cfg.Clamp}
	if cfg.NMS.Enabled {
		options.NMS = cfg.NMSOptions()
	}

	return New(Args{
		Engine:     engine,
		InputSize:  cfg.TargetSize,
		PadColor:   pad,
		NumClasses: cfg.NumClasses,
		Layout:     cfg.DecoderLayout(),
		Options:    options,
		Logger:     logger,
	})
}

// Detect runs the full pipeline on one image.
//
// Arguments:
//   - ctx: Cancels the inference call.
//   - img: The source image.
//
// Returns:
//   - *Result: Detections in original image coordinates.
//   - error: preprocess.ErrInvalidInput, engine errors, or decoder shape errors.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()
	id := uuid.New()
	logger := d.logger.With(zap.String("run", id.String()))

	pre, err := d.preprocessor.Preprocess(img)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	raw, err := d.infer(ctx, pre.Tensor)
	if err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	candidates, err := d.decoder.DecodeTensor(raw.Data, raw.Shape, d.options.ConfThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	kept := candidates
	if d.options.NMS != nil {
		kept = postprocess.Apply(candidates, d.options.NMS)
	}

	detections := make([]postprocess.Detection, len(kept))
	for i, det := range kept {
		detections[i] = d.toOriginal(det, pre.Letterbox)
	}

	result := &Result{
		ID:         id,
		Detections: detections,
		Candidates: len(candidates),
		Letterbox:  pre.Letterbox,
		Duration:   time.Since(start),
	}

	logger.Debug("detected",
		zap.Int("candidates", result.Candidates),
		zap.Int("detections", len(result.Detections)),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// BatchDetect runs Detect over imgs with at most maxConcurrency images in flight.
//
// Arguments:
//   - ctx: Cancels pending inference calls.
//   - imgs: The source images.
//   - maxConcurrency: The concurrency bound; values below 1 mean 1.
//
// Returns:
//   - []*Result: Results in input order.
//   - error: The error of the first failing image, if any.
func (d *Detector) BatchDetect(ctx context.Context, imgs []image.Image, maxConcurrency int) ([]*Result, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*Result, len(imgs))
	errs := make([]error, len(imgs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range imgs {
		wg.Add(1)
		go func(idx int, img image.Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := d.Detect(ctx, img)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "image %d", idx)
				return
			}
			results[idx] = result
		}(i, img)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// Close releases the engine.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Close()
}

func (d *Detector) infer(ctx context.Context, tensor *preprocess.Tensor) (*inference.RawOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Run(ctx, tensor)
}

func (d *Detector) toOriginal(det postprocess.Detection, lb *preprocess.LetterboxResult) postprocess.Detection {
	corners := lb.ToOriginalSpace(det.Corners())
	if d.options.Clamp {
		corners = corners.Clamp(lb.OriginalWidth, lb.OriginalHeight)
	}
	det.Box = corners.ToBox()
	return det
}
