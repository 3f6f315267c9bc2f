// Command webcam runs the detector over frames from a video capture device.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/detector"
	"github.com/nvr-ai/go-yolo/images/cv"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/report"
)

func main() {
	var (
		configPath string
		deviceID   int
		maxFrames  int
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration")
	flag.IntVar(&deviceID, "device", 0, "Video capture device ID")
	flag.IntVar(&maxFrames, "frames", 0, "Stop after this many frames, 0 runs until interrupted")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "missing -config")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, deviceID, maxFrames, logger); err != nil {
		logger.Error("webcam detection failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, deviceID, maxFrames int, logger *zap.Logger) error {
	engine, err := inference.NewONNXEngine(cfg.ONNX(), logger)
	if err != nil {
		return err
	}

	d, err := detector.FromConfig(cfg, engine, logger)
	if err != nil {
		engine.Close()
		return err
	}
	defer d.Close()

	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return err
	}
	defer webcam.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	labels := report.Labels(cfg.ClassNames)
	lastChecksum := ""

	// FPS tracking
	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	logger.Info("reading camera", zap.Int("device", deviceID))
	for frames := 0; maxFrames == 0 || frames < maxFrames; frames++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if ok := webcam.Read(&mat); !ok {
			return errors.Errorf("cannot read device %d", deviceID)
		}
		if mat.Empty() {
			continue
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		// Stalled drivers keep returning the last buffer.
		checksum := cv.Checksum(mat)
		if checksum == lastChecksum {
			logger.Debug("duplicate frame", zap.String("checksum", checksum))
			continue
		}
		lastChecksum = checksum

		img, err := cv.FromMat(mat)
		if err != nil {
			return err
		}
		result, err := d.Detect(ctx, img)
		if err != nil {
			return err
		}

		fields := []zap.Field{
			zap.Int("detections", len(result.Detections)),
			zap.Float64("fps", fps),
			zap.Duration("latency", result.Duration),
		}
		if primary, ok := report.Primary(result.Detections); ok {
			fields = append(fields,
				zap.String("primary", labels.Name(primary.ClassID)),
				zap.Float32("confidence", primary.Confidence),
			)
		}
		logger.Info("frame", fields...)
	}
	return nil
}
