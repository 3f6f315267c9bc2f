package report

import "strings"

// COCO is the 80-class COCO label set in YOLO order (no background class).
var COCO = Labels{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// VOC is the 20-class Pascal VOC label set (no background class).
var VOC = Labels{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa",
	"train", "tvmonitor",
}

// Chart is the 8-class chart element label set.
var Chart = Labels{
	"chart", "bar", "line_point", "pie_slice", "axis_label", "legend", "title", "data_label",
}

var presets = map[string]Labels{
	"coco":  COCO,
	"voc":   VOC,
	"chart": Chart,
}

// Preset returns a copy of a named label set ("coco", "voc" or "chart").
func Preset(name string) (Labels, bool) {
	labels, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return append(Labels(nil), labels...), true
}
