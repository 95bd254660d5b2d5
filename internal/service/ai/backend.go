package ai

import (
	"context"
	"errors"
	"image"
	"io"

	"lprserver/internal/config"
	"lprserver/internal/logger"
	"lprserver/internal/model"
)

// RawBox is a plate candidate in source-image pixel coordinates, exactly as
// the detector produced it.
type RawBox struct {
	X1, Y1, X2, Y2 float64
	Score          float64
}

// Reading is the raw output of a text reader. Confidence is nil when the
// backend does not report one.
type Reading struct {
	Text       string
	Confidence *float64
}

// PlateLocator finds plate regions in a full image.
type PlateLocator interface {
	Locate(ctx context.Context, img image.Image) ([]RawBox, error)
}

// TextReader reads the characters on a cropped plate image.
type TextReader interface {
	ReadText(ctx context.Context, img image.Image) (Reading, error)
}

// Models holds whatever backends could be loaded at startup. A nil Locator or
// Reader means that capability is unavailable for the process lifetime.
type Models struct {
	Locator      PlateLocator
	Reader       TextReader
	Capabilities model.Capabilities

	closers []io.Closer
}

// LoadModels negotiates capabilities once. Missing weights or unreachable
// services are logged as warnings and leave the corresponding backend nil.
func LoadModels(ctx context.Context, cfg *config.Config, logger *logger.Logger) *Models {
	m := &Models{
		Capabilities: model.Capabilities{
			DetectorBackend:   DetectorBackendYOLO,
			RecognizerBackend: cfg.RecognizerBackend,
		},
	}

	detector, err := NewYOLODetector(cfg.YoloWeights, cfg.InputSize)
	if err != nil {
		logger.Warning("Plate detector unavailable: %v", err)
	} else {
		logger.Info("Plate detector loaded from %s", cfg.YoloWeights)
		m.Locator = detector
		m.closers = append(m.closers, detector)
		m.Capabilities.DetectorAvailable = true
	}

	reader, err := newReader(ctx, cfg)
	if err != nil {
		logger.Warning("Plate recognizer (%s) unavailable: %v", cfg.RecognizerBackend, err)
	} else {
		logger.Info("Plate recognizer (%s) ready", cfg.RecognizerBackend)
		m.Reader = reader
		if c, ok := reader.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
		m.Capabilities.RecognizerAvailable = true
	}

	return m
}

func newReader(ctx context.Context, cfg *config.Config) (TextReader, error) {
	switch cfg.RecognizerBackend {
	case config.RecognizerDNN:
		return NewDNNReader(cfg.RecognizerWeightsDir)
	case config.RecognizerOllama:
		return NewOllamaReader(ctx, cfg.OllamaURL, cfg.OllamaModel)
	case config.RecognizerRekognition:
		return NewRekognitionReader(ctx, cfg.AWSRegion)
	default:
		return nil, errors.New("unknown recognizer backend " + cfg.RecognizerBackend)
	}
}

// Close releases native model resources.
func (m *Models) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
