package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"lprserver/internal/service/imageproc"
)

// Files expected in the recognizer weights directory.
const (
	RecognizerModelFile   = "model.onnx"
	RecognizerCharsetFile = "charset.txt"
	RecognizerConfigFile  = "recognizer.json"
)

// RecognizerSettings is the optional recognizer.json next to the model.
type RecognizerSettings struct {
	InputWidth  int     `json:"input_width"`
	InputHeight int     `json:"input_height"`
	BlankIndex  int     `json:"blank_index"`
	Scale       float64 `json:"scale"`
	Mean        float64 `json:"mean"`
}

// DefaultRecognizerSettings fit an LPRNet export.
func DefaultRecognizerSettings() RecognizerSettings {
	return RecognizerSettings{
		InputWidth:  94,
		InputHeight: 24,
		BlankIndex:  0,
		Scale:       1.0 / 128.0,
		Mean:        127.5,
	}
}

// DNNReader runs a CTC sequence recognizer (LPRNet, CRNN) through gocv.
type DNNReader struct {
	net      gocv.Net
	charset  []string
	settings RecognizerSettings
	mu       sync.Mutex
}

// NewDNNReader loads model.onnx, charset.txt and optional recognizer.json
// from dir.
func NewDNNReader(dir string) (*DNNReader, error) {
	modelPath := filepath.Join(dir, RecognizerModelFile)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("weights file not found: %s", modelPath)
	}

	charset, err := loadCharset(filepath.Join(dir, RecognizerCharsetFile))
	if err != nil {
		return nil, err
	}

	settings, err := loadRecognizerSettings(filepath.Join(dir, RecognizerConfigFile))
	if err != nil {
		return nil, err
	}
	if settings.BlankIndex < 0 || settings.BlankIndex >= len(charset) {
		return nil, fmt.Errorf("blank index %d outside charset of %d classes", settings.BlankIndex, len(charset))
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	return &DNNReader{net: net, charset: charset, settings: settings}, nil
}

func loadRecognizerSettings(path string) (RecognizerSettings, error) {
	settings := DefaultRecognizerSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if settings.InputWidth <= 0 || settings.InputHeight <= 0 {
		return settings, fmt.Errorf("invalid recognizer input size %dx%d", settings.InputWidth, settings.InputHeight)
	}
	return settings, nil
}

// ReadText decodes the plate characters. The CTC backend reports no confidence.
func (r *DNNReader) ReadText(ctx context.Context, img image.Image) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	mat, err := imageproc.ToMat(img)
	if err != nil {
		return Reading{}, err
	}
	defer mat.Close()

	s := r.settings
	blob := gocv.BlobFromImage(mat, s.Scale, image.Pt(s.InputWidth, s.InputHeight),
		gocv.NewScalar(s.Mean, s.Mean, s.Mean, 0), true, false)
	defer blob.Close()

	r.mu.Lock()
	r.net.SetInput(blob, "")
	output := r.net.Forward("")
	r.mu.Unlock()
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read recognizer output: %w", err)
	}

	classes := len(r.charset)
	if len(data) == 0 || len(data)%classes != 0 {
		return Reading{}, fmt.Errorf("recognizer output of %d values does not fit %d classes", len(data), classes)
	}

	dims := output.Size()
	classMajor := len(dims) > 0 && dims[len(dims)-1] != classes
	text := ctcGreedyDecode(data, len(data)/classes, classes, classMajor, s.BlankIndex, r.charset)

	return Reading{Text: text}, nil
}

// Close releases the network.
func (r *DNNReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.net.Close()
}
