package model

import (
	"encoding/json"
	"fmt"
	"image"
)

// BoundingBox is an axis-aligned box in image pixel coordinates.
// It serializes as the array [x1, y1, x2, y2].
type BoundingBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Area is zero for degenerate boxes.
func (b BoundingBox) Area() int {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// ClampTo orders the corners and limits them to the given bounds.
func (b BoundingBox) ClampTo(bounds image.Rectangle) BoundingBox {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return BoundingBox{
		X1: clampInt(b.X1, bounds.Min.X, bounds.Max.X),
		Y1: clampInt(b.Y1, bounds.Min.Y, bounds.Max.Y),
		X2: clampInt(b.X2, bounds.Min.X, bounds.Max.X),
		Y2: clampInt(b.Y2, bounds.Min.Y, bounds.Max.Y),
	}
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X1, b.Y1, b.X2, b.Y2})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var xyxy []int
	if err := json.Unmarshal(data, &xyxy); err != nil {
		return err
	}
	if len(xyxy) != 4 {
		return fmt.Errorf("bbox_xyxy must have 4 values, got %d", len(xyxy))
	}
	*b = BoundingBox{X1: xyxy[0], Y1: xyxy[1], X2: xyxy[2], Y2: xyxy[3]}
	return nil
}

// Detection represents a candidate plate region.
type Detection struct {
	BBox       BoundingBox `json:"bbox_xyxy"`
	Confidence float64     `json:"confidence"`
}

// RecognitionResult holds normalized plate text.
type RecognitionResult struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// InferenceResult is the outcome of one pipeline run. Authorized and Message
// are filled in by the HTTP layer.
type InferenceResult struct {
	Detections  []Detection        `json:"detections"`
	Recognition *RecognitionResult `json:"recognition"`
	Authorized  *bool              `json:"authorized"`
	Message     *string            `json:"message"`
}

// Capabilities records which models were loaded at startup.
type Capabilities struct {
	DetectorAvailable   bool   `json:"detector_available"`
	RecognizerAvailable bool   `json:"recognizer_available"`
	DetectorBackend     string `json:"detector_backend"`
	RecognizerBackend   string `json:"recognizer_backend"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
