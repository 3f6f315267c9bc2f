// Command detect letterboxes one image or a directory of images, runs a YOLO ONNX model
// and prints the detections.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/detector"
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/report"
)

func main() {
	var (
		configPath string
		imagePath  string
		dirPath    string
		workers    int
		modelPath  string
		classes    string
		conf       float64
		iou        float64
		size       int
		clamp      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .webp)")
	flag.StringVar(&dirPath, "dir", "", "Directory of images to detect in one batch")
	flag.IntVar(&workers, "workers", 4, "Images preprocessed concurrently with -dir")
	flag.StringVar(&modelPath, "model", "", "Path to YOLO ONNX model file")
	flag.StringVar(&classes, "classes", "", "Comma-separated class names or a preset (coco, voc, chart)")
	flag.Float64Var(&conf, "conf", 0.25, "Confidence threshold")
	flag.Float64Var(&iou, "iou", 0.45, "NMS IoU threshold")
	flag.IntVar(&size, "size", 640, "Model input size")
	flag.BoolVar(&clamp, "clamp", true, "Clamp boxes to the image bounds")
	flag.Parse()

	if (imagePath == "") == (dirPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -image or -dir is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Explicit flags win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model.Path = modelPath
		case "conf":
			cfg.ConfThreshold = float32(conf)
		case "iou":
			cfg.IoUThreshold = float32(iou)
		case "size":
			cfg.TargetSize = size
			cfg.Model.NumAnchors = config.AnchorCount(size)
		case "clamp":
			cfg.Clamp = clamp
		case "classes":
			if preset, ok := report.Preset(classes); ok {
				cfg.ClassNames = preset
			} else {
				cfg.ClassNames = strings.Split(classes, ",")
			}
			cfg.NumClasses = len(cfg.ClassNames)
		}
	})
	if err := cfg.Validate(); err != nil {
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

	paths := []string{imagePath}
	if dirPath != "" {
		if paths, err = images.ListDir(dirPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, paths, workers, logger); err != nil {
		logger.Error("detection failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, paths []string, workers int, logger *zap.Logger) error {
	imgs := make([]image.Image, len(paths))
	for i, path := range paths {
		img, err := images.Load(path)
		if err != nil {
			return err
		}
		imgs[i] = img
	}

	engine, err := inference.NewONNXEngine(cfg.ONNX(), logger)
	if err != nil {
		return errors.Wrap(err, "load model")
	}

	d, err := detector.FromConfig(cfg, engine, logger)
	if err != nil {
		engine.Close()
		return err
	}
	defer d.Close()

	results, err := d.BatchDetect(ctx, imgs, workers)
	if err != nil {
		return err
	}

	labels := report.Labels(cfg.ClassNames)
	for i, result := range results {
		lb := result.Letterbox
		logger.Info("letterbox",
			zap.String("image", paths[i]),
			zap.Int("original_width", lb.OriginalWidth),
			zap.Int("original_height", lb.OriginalHeight),
			zap.Float64("scale", lb.Scale),
			zap.Int("pad_left", lb.PadLeft),
			zap.Int("pad_top", lb.PadTop),
		)

		if len(results) > 1 {
			fmt.Printf("%s\n", paths[i])
		}
		if err := report.Write(os.Stdout, result.Detections, labels); err != nil {
			return err
		}
		if primary, ok := report.Primary(result.Detections); ok {
			logger.Info("primary detection",
				zap.String("image", paths[i]),
				zap.String("label", labels.Name(primary.ClassID)),
				zap.Float32("confidence", primary.Confidence),
				zap.Stringer("box", primary.Box),
			)
		}
	}
	return nil
}
