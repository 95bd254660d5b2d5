package service

import (
	"context"
	"fmt"
	"image"

	"lprserver/internal/config"
	"lprserver/internal/logger"
	"lprserver/internal/model"
	"lprserver/internal/service/imageproc"
)

// Input image errors. All of them wrap ErrInvalidImage.
var (
	ErrInvalidImage = imageproc.ErrInvalidImage
	ErrEmptyImage   = imageproc.ErrEmptyImage
	ErrDecodeImage  = imageproc.ErrDecodeImage
)

// InferenceService runs decode, detect, select, crop and recognize for one
// image. Authorization is left to the caller.
type InferenceService struct {
	detection   *DetectionStage
	recognition *RecognitionStage
	policy      string
	logger      *logger.Logger
}

// NewInferenceService creates the orchestrator. An unknown policy falls back
// to selecting the first detection.
func NewInferenceService(detection *DetectionStage, recognition *RecognitionStage, policy string, logger *logger.Logger) *InferenceService {
	if policy != config.SelectConfidence {
		policy = config.SelectFirst
	}
	return &InferenceService{
		detection:   detection,
		recognition: recognition,
		policy:      policy,
		logger:      logger,
	}
}

// Capabilities reports which stages have a backend.
func (s *InferenceService) Capabilities() (detector, recognizer bool) {
	return s.detection.Available(), s.recognition.Available()
}

// InferFromBytes decodes raw and runs the pipeline on it.
func (s *InferenceService) InferFromBytes(ctx context.Context, raw []byte) (*model.InferenceResult, error) {
	img, err := imageproc.Decode(raw)
	if err != nil {
		return nil, err
	}
	return s.Infer(ctx, img)
}

// Infer runs the pipeline on an already decoded image. Missing backends never
// fail the call; they yield no detections or no recognition.
func (s *InferenceService) Infer(ctx context.Context, img image.Image) (*model.InferenceResult, error) {
	detections, err := s.detection.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	result := &model.InferenceResult{Detections: detections}

	selected, ok := s.selectDetection(detections)
	if !ok {
		return result, nil
	}

	if selected.BBox.Area() == 0 {
		s.logger.Warning("Skipping recognition: selected box %v has zero area", selected.BBox)
		return result, nil
	}

	crop := imageproc.Crop(img, selected.BBox)
	recognition, err := s.recognition.Recognize(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}
	result.Recognition = recognition

	return result, nil
}

// Detect decodes raw and runs only the detection stage.
func (s *InferenceService) Detect(ctx context.Context, raw []byte) (*image.NRGBA, []model.Detection, error) {
	img, err := imageproc.Decode(raw)
	if err != nil {
		return nil, nil, err
	}

	detections, err := s.detection.Detect(ctx, img)
	if err != nil {
		return nil, nil, fmt.Errorf("detection failed: %w", err)
	}
	return img, detections, nil
}

// selectDetection picks the detection to recognize. The default policy takes
// the first one in detector output order, regardless of confidence.
func (s *InferenceService) selectDetection(detections []model.Detection) (model.Detection, bool) {
	if len(detections) == 0 {
		return model.Detection{}, false
	}

	if s.policy != config.SelectConfidence {
		return detections[0], true
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}
