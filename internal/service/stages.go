package service

import (
	"context"
	"image"

	"lprserver/internal/model"
	"lprserver/internal/plate"
	"lprserver/internal/service/ai"
)

// DetectionStage turns raw locator output into clamped detections.
type DetectionStage struct {
	locator ai.PlateLocator
}

// NewDetectionStage wraps locator; a nil locator makes the stage report no
// detections.
func NewDetectionStage(locator ai.PlateLocator) *DetectionStage {
	return &DetectionStage{locator: locator}
}

// Available reports whether a locator is loaded.
func (s *DetectionStage) Available() bool {
	return s.locator != nil
}

// Detect returns every detection in locator order. Coordinates are truncated
// toward zero, then clamped to the image with ordered corners.
func (s *DetectionStage) Detect(ctx context.Context, img image.Image) ([]model.Detection, error) {
	detections := []model.Detection{}
	if s.locator == nil {
		return detections, nil
	}

	boxes, err := s.locator.Locate(ctx, img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	for _, b := range boxes {
		bbox := model.BoundingBox{
			X1: int(b.X1),
			Y1: int(b.Y1),
			X2: int(b.X2),
			Y2: int(b.Y2),
		}
		detections = append(detections, model.Detection{
			BBox:       bbox.ClampTo(bounds),
			Confidence: b.Score,
		})
	}
	return detections, nil
}

// RecognitionStage reads and normalizes plate text from a crop.
type RecognitionStage struct {
	reader ai.TextReader
}

// NewRecognitionStage wraps reader; a nil reader disables recognition.
func NewRecognitionStage(reader ai.TextReader) *RecognitionStage {
	return &RecognitionStage{reader: reader}
}

// Available reports whether a reader is loaded.
func (s *RecognitionStage) Available() bool {
	return s.reader != nil
}

// Recognize returns nil, nil when no reader is loaded.
func (s *RecognitionStage) Recognize(ctx context.Context, crop image.Image) (*model.RecognitionResult, error) {
	if s.reader == nil {
		return nil, nil
	}

	reading, err := s.reader.ReadText(ctx, crop)
	if err != nil {
		return nil, err
	}

	return &model.RecognitionResult{
		Text:       plate.Normalize(reading.Text),
		Confidence: reading.Confidence,
	}, nil
}
