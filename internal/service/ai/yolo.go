package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"lprserver/internal/service/imageproc"
)

const (
	// DetectorBackendYOLO names the detector in the capabilities record.
	DetectorBackendYOLO = "yolo-onnx"

	// ScoreThreshold and NMSThreshold match the predictor defaults the
	// plate model was exported with.
	ScoreThreshold = 0.25
	NMSThreshold   = 0.7
)

// YOLODetector runs an ONNX YOLOv8 export whose single output has shape
// [1, 4+classes, anchors] with cx, cy, w, h in input pixels.
type YOLODetector struct {
	net       gocv.Net
	inputSize int
	mu        sync.Mutex
}

// NewYOLODetector loads the network from weightsPath.
func NewYOLODetector(weightsPath string, inputSize int) (*YOLODetector, error) {
	if _, err := os.Stat(weightsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("weights file not found: %s", weightsPath)
	}

	net := gocv.ReadNetFromONNX(weightsPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", weightsPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &YOLODetector{net: net, inputSize: inputSize}, nil
}

// Locate returns plate boxes in descending score order.
func (d *YOLODetector) Locate(ctx context.Context, img image.Image) ([]RawBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := imageproc.ToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected detector output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read detector output: %w", err)
	}

	scaleX := float64(mat.Cols()) / float64(d.inputSize)
	scaleY := float64(mat.Rows()) / float64(d.inputSize)
	candidates := decodeYOLOOutput(data, dims[1], dims[2], scaleX, scaleY, ScoreThreshold)

	return suppress(candidates, NMSThreshold), nil
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decodeYOLOOutput reads a channel-major [attrs, anchors] tensor and keeps
// anchors whose best class score reaches minScore.
func decodeYOLOOutput(data []float32, attrs, anchors int, scaleX, scaleY, minScore float64) []RawBox {
	if len(data) < attrs*anchors {
		return nil
	}

	var boxes []RawBox
	for i := 0; i < anchors; i++ {
		score := float32(0)
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > score {
				score = s
			}
		}
		if float64(score) < minScore {
			continue
		}

		cx := float64(data[i])
		cy := float64(data[anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])

		boxes = append(boxes, RawBox{
			X1:    (cx - w/2) * scaleX,
			Y1:    (cy - h/2) * scaleY,
			X2:    (cx + w/2) * scaleX,
			Y2:    (cy + h/2) * scaleY,
			Score: float64(score),
		})
	}
	return boxes
}

func suppress(boxes []RawBox, iou float64) []RawBox {
	if len(boxes) == 0 {
		return []RawBox{}
	}

	rects := make([]image.Rectangle, len(boxes))
	scores := make([]float32, len(boxes))
	for i, b := range boxes {
		rects[i] = image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
		scores[i] = float32(b.Score)
	}

	indices := gocv.NMSBoxes(rects, scores, float32(ScoreThreshold), float32(iou))

	kept := make([]RawBox, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, boxes[idx])
	}
	return kept
}
