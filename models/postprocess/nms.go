// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/nvr-ai/go-yolo/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Greedy       bool    `json:"greedy" yaml:"greedy"`               // If true, use single-goroutine greedy NMS.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
	NumWorkers   int     `json:"num_workers" yaml:"num_workers"`     // Number of goroutines for parallel IoU computation.
}

// DefaultNMSConfig returns class-aware greedy suppression at the given IoU threshold.
func DefaultNMSConfig(iouThreshold float32) *NMSConfig {
	return &NMSConfig{
		Greedy:       true,
		IoUThreshold: iouThreshold,
		ClassAware:   true,
		NumWorkers:   1,
	}
}

// Apply runs the NMS variant selected by config.
func Apply(detections []Detection, config *NMSConfig) []Detection {
	if config.Greedy || config.NumWorkers <= 1 {
		return ApplyGreedyNMS(detections, config)
	}
	return ApplyNMS(detections, config)
}

// SortByConfidence returns a copy of detections ordered highest confidence first.
// Equal confidences keep their anchor order.
func SortByConfidence(detections []Detection) []Detection {
	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted
}

// suppresses reports whether anchor suppresses candidate under config.
func suppresses(anchor, candidate Detection, config *NMSConfig) bool {
	if config.ClassAware && anchor.ClassID != candidate.ClassID {
		return false
	}
	return images.CalculateIoU(anchor.Corners(), candidate.Corners()) > config.IoUThreshold
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The highest-confidence remaining detection is kept and every later detection whose IoU
// with it exceeds the threshold is dropped, repeated until none remain.
//
// Arguments:
//   - detections: Detections in any order; the input slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest confidence first. Nil for empty input.
func ApplyGreedyNMS(detections []Detection, config *NMSConfig) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := SortByConfidence(detections)
	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if suppresses(anchor, sorted[j], config) {
				used[j] = true
			}
		}
	}

	return filtered
}

// ApplyNMS filters overlapping detections using Non-Maximum Suppression, spreading the
// IoU checks of each kept detection across config.NumWorkers goroutines.
//
// Every round partitions the candidates into disjoint ranges, so each suppression flag
// is written by exactly one worker. The result is identical to ApplyGreedyNMS.
//
// Arguments:
//   - detections: Detections in any order; the input slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest confidence first. Nil for empty input.
func ApplyNMS(detections []Detection, config *NMSConfig) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	workers := config.NumWorkers
	if workers < 1 {
		workers = 1
	}

	sorted := SortByConfidence(detections)
	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		remaining := n - (i + 1)
		if remaining == 0 {
			break
		}
		chunk := (remaining + workers - 1) / workers

		var wg sync.WaitGroup
		for start := i + 1; start < n; start += chunk {
			end := min(start+chunk, n)
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for j := start; j < end; j++ {
					if !used[j] && suppresses(anchor, sorted[j], config) {
						used[j] = true
					}
				}
			}(start, end)
		}
		wg.Wait()
	}

	return filtered
}
