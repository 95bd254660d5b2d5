package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"lprserver/internal/config"
	"lprserver/internal/logger"
	"lprserver/internal/model"
	"lprserver/internal/repository/jsonfile"
	"lprserver/internal/service/ai"
)

type stubLocator struct {
	boxes []ai.RawBox
	err   error
	calls int
}

func (s *stubLocator) Locate(ctx context.Context, img image.Image) ([]ai.RawBox, error) {
	s.calls++
	return s.boxes, s.err
}

type stubReader struct {
	text       string
	confidence *float64
	err        error
	calls      int
	lastSize   image.Point
}

func (s *stubReader) ReadText(ctx context.Context, img image.Image) (ai.Reading, error) {
	s.calls++
	s.lastSize = img.Bounds().Size()
	return ai.Reading{Text: s.text, Confidence: s.confidence}, s.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newInference(locator ai.PlateLocator, reader ai.TextReader, policy string) *InferenceService {
	return NewInferenceService(NewDetectionStage(locator), NewRecognitionStage(reader), policy, logger.NewDiscard())
}

func TestInferFromBytes_EndToEnd(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{{X1: 10, Y1: 10, X2: 60, Y2: 40, Score: 0.9}}}
	reader := &stubReader{text: "ab 12-cd "}
	svc := newInference(locator, reader, config.SelectFirst)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 100, 50))
	if err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}

	wantDetections := []model.Detection{{BBox: model.BoundingBox{X1: 10, Y1: 10, X2: 60, Y2: 40}, Confidence: 0.9}}
	if !reflect.DeepEqual(result.Detections, wantDetections) {
		t.Errorf("Expected detections %v, got %v", wantDetections, result.Detections)
	}
	if result.Recognition == nil || result.Recognition.Text != "AB 12 CD" {
		t.Fatalf("Expected recognition 'AB 12 CD', got %+v", result.Recognition)
	}
	if result.Recognition.Confidence != nil {
		t.Errorf("Expected no recognition confidence, got %v", *result.Recognition.Confidence)
	}
	if result.Authorized != nil || result.Message != nil {
		t.Error("Orchestrator must not fill authorized or message")
	}
	if reader.lastSize != image.Pt(50, 30) {
		t.Errorf("Expected 50x30 crop, got %v", reader.lastSize)
	}
}

type pixelReader struct {
	at    image.Point
	pixel color.Color
}

func (p *pixelReader) ReadText(ctx context.Context, img image.Image) (ai.Reading, error) {
	p.pixel = img.At(img.Bounds().Min.X+p.at.X, img.Bounds().Min.Y+p.at.Y)
	return ai.Reading{Text: "X1"}, nil
}

func TestInfer_SubImageCropsDetectedRegion(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 100, 100))
	full.Set(25, 25, color.RGBA{R: 255, A: 255})
	sub := full.SubImage(image.Rect(10, 10, 60, 60))

	locator := &stubLocator{boxes: []ai.RawBox{{X1: 20, Y1: 20, X2: 40, Y2: 40, Score: 0.8}}}
	reader := &pixelReader{at: image.Pt(5, 5)}
	svc := newInference(locator, reader, config.SelectFirst)

	result, err := svc.Infer(context.Background(), sub)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if result.Detections[0].BBox != (model.BoundingBox{X1: 20, Y1: 20, X2: 40, Y2: 40}) {
		t.Errorf("Unexpected detection %v", result.Detections[0].BBox)
	}
	r, _, _, a := reader.pixel.RGBA()
	if r>>8 != 255 || a>>8 != 255 {
		t.Errorf("Expected the marker pixel inside the crop, got %v", reader.pixel)
	}
}

func TestInferFromBytes_NoModelsDegrades(t *testing.T) {
	svc := newInference(nil, nil, config.SelectFirst)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32))
	if err != nil {
		t.Fatalf("Missing models must not fail the request: %v", err)
	}
	if result.Detections == nil || len(result.Detections) != 0 {
		t.Errorf("Expected empty detections, got %#v", result.Detections)
	}
	if result.Recognition != nil {
		t.Errorf("Expected no recognition, got %+v", result.Recognition)
	}
}

func TestInferFromBytes_EmptyDetectionsSkipsRecognizer(t *testing.T) {
	reader := &stubReader{text: "XX"}
	svc := newInference(&stubLocator{}, reader, config.SelectFirst)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32))
	if err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}
	if reader.calls != 0 {
		t.Errorf("Recognizer must not be invoked without detections, got %d calls", reader.calls)
	}
	if result.Recognition != nil {
		t.Errorf("Expected no recognition, got %+v", result.Recognition)
	}
}

func TestInferFromBytes_DetectorOnly(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{{X1: 1, Y1: 1, X2: 9, Y2: 9, Score: 0.5}}}
	svc := newInference(locator, nil, config.SelectFirst)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32))
	if err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}
	if len(result.Detections) != 1 || result.Recognition != nil {
		t.Errorf("Expected one detection and no recognition, got %+v", result)
	}
}

// The default policy recognizes the first detection in output order even when
// a later one scores higher.
func TestInferFromBytes_SelectsFirstDetectionNotHighestConfidence(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.3},
		{X1: 0, Y1: 0, X2: 20, Y2: 20, Score: 0.95},
	}}
	reader := &stubReader{text: "A1"}
	svc := newInference(locator, reader, config.SelectFirst)

	if _, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32)); err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}
	if reader.lastSize != image.Pt(10, 10) {
		t.Errorf("Expected first detection (10x10) to be cropped, got %v", reader.lastSize)
	}
}

func TestInferFromBytes_ConfidencePolicy(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.3},
		{X1: 0, Y1: 0, X2: 20, Y2: 20, Score: 0.95},
	}}
	reader := &stubReader{text: "A1"}
	svc := newInference(locator, reader, config.SelectConfidence)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32))
	if err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}
	if reader.lastSize != image.Pt(20, 20) {
		t.Errorf("Expected highest-confidence detection (20x20), got %v", reader.lastSize)
	}
	if len(result.Detections) != 2 || result.Detections[0].Confidence != 0.3 {
		t.Errorf("Detections must keep detector order, got %v", result.Detections)
	}
}

func TestInferFromBytes_ClampsAndSkipsEmptyCrop(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{{X1: 40, Y1: 5, X2: 80, Y2: 20, Score: 0.8}}}
	reader := &stubReader{text: "A1"}
	svc := newInference(locator, reader, config.SelectFirst)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32))
	if err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}
	want := model.BoundingBox{X1: 32, Y1: 5, X2: 32, Y2: 20}
	if result.Detections[0].BBox != want {
		t.Errorf("Expected clamped box %v, got %v", want, result.Detections[0].BBox)
	}
	if reader.calls != 0 || result.Recognition != nil {
		t.Error("Zero-area crop must skip recognition")
	}
}

func TestInferFromBytes_TruncatesCoordinates(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{{X1: 1.9, Y1: 2.99, X2: 10.5, Y2: 12.01, Score: 0.7}}}
	svc := newInference(locator, nil, config.SelectFirst)

	result, err := svc.InferFromBytes(context.Background(), pngBytes(t, 32, 32))
	if err != nil {
		t.Fatalf("InferFromBytes failed: %v", err)
	}
	want := model.BoundingBox{X1: 1, Y1: 2, X2: 10, Y2: 12}
	if result.Detections[0].BBox != want {
		t.Errorf("Expected %v, got %v", want, result.Detections[0].BBox)
	}
}

func TestInferFromBytes_InvalidInput(t *testing.T) {
	svc := newInference(nil, nil, config.SelectFirst)

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"empty", nil, ErrEmptyImage},
		{"garbage", []byte("not an image"), ErrDecodeImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.InferFromBytes(context.Background(), tt.raw)
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidImage) {
				t.Errorf("Expected %v wrapping ErrInvalidImage, got %v", tt.want, err)
			}
		})
	}
}

func TestInferFromBytes_BackendErrorsPropagate(t *testing.T) {
	boom := errors.New("runtime failure")

	svc := newInference(&stubLocator{err: boom}, nil, config.SelectFirst)
	if _, err := svc.InferFromBytes(context.Background(), pngBytes(t, 8, 8)); !errors.Is(err, boom) {
		t.Errorf("Expected detector error, got %v", err)
	}

	locator := &stubLocator{boxes: []ai.RawBox{{X1: 0, Y1: 0, X2: 4, Y2: 4, Score: 0.9}}}
	svc = newInference(locator, &stubReader{err: boom}, config.SelectFirst)
	if _, err := svc.InferFromBytes(context.Background(), pngBytes(t, 8, 8)); !errors.Is(err, boom) {
		t.Errorf("Expected recognizer error, got %v", err)
	}
}

func TestRecognitionStage_KeepsBackendConfidence(t *testing.T) {
	conf := 0.87
	stage := NewRecognitionStage(&stubReader{text: " xy-9 ", confidence: &conf})

	result, err := stage.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Text != "XY 9" || result.Confidence == nil || *result.Confidence != conf {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestDetect_ReturnsImageAndDetections(t *testing.T) {
	locator := &stubLocator{boxes: []ai.RawBox{{X1: 1, Y1: 1, X2: 5, Y2: 5, Score: 0.4}}}
	svc := newInference(locator, nil, config.SelectFirst)

	img, detections, err := svc.Detect(context.Background(), pngBytes(t, 16, 8))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if img.Bounds().Dx() != 16 || len(detections) != 1 {
		t.Errorf("Unexpected image %v or detections %v", img.Bounds(), detections)
	}
}

func newAuthorized(t *testing.T) (*AuthorizedService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authorized_plates.json")
	repo, err := jsonfile.NewPlateRepository(path)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	return NewAuthorizedService(repo), path
}

func TestAuthorizedService_RoundTrip(t *testing.T) {
	svc, _ := newAuthorized(t)

	added, err := svc.Add("ab-12 cd")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added != "AB 12 CD" {
		t.Errorf("Expected normalized 'AB 12 CD', got %q", added)
	}

	ok, err := svc.IsAuthorized("AB 12 CD")
	if err != nil || !ok {
		t.Errorf("Expected plate to be authorized, got %v (%v)", ok, err)
	}
	ok, err = svc.IsAuthorized("  ab 12.cd")
	if err != nil || !ok {
		t.Errorf("Expected lookup to normalize input, got %v (%v)", ok, err)
	}

	removed, err := svc.Remove("ab 12 cd")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed != "AB 12 CD" {
		t.Errorf("Expected removed 'AB 12 CD', got %q", removed)
	}

	ok, err = svc.IsAuthorized("AB 12 CD")
	if err != nil || ok {
		t.Errorf("Expected plate to be gone, got %v (%v)", ok, err)
	}
}

func TestAuthorizedService_AddIsIdempotentAndListSorted(t *testing.T) {
	svc, _ := newAuthorized(t)

	for _, p := range []string{"zz 1", "AA-2", "zz 1", "ZZ  1"} {
		if _, err := svc.Add(p); err != nil {
			t.Fatalf("Add(%q) failed: %v", p, err)
		}
	}

	plates, err := svc.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(plates, []string{"AA 2", "ZZ 1"}) {
		t.Errorf("Expected [AA 2 ZZ 1], got %v", plates)
	}
}

func TestAuthorizedService_EmptyPlate(t *testing.T) {
	svc, _ := newAuthorized(t)

	added, err := svc.Add(" -- ")
	if err != nil || added != "" {
		t.Errorf("Expected empty add to return \"\" without error, got %q (%v)", added, err)
	}
	if plates, _ := svc.List(); len(plates) != 0 {
		t.Errorf("Empty plate must not be stored, got %v", plates)
	}

	removed, err := svc.Remove("!!")
	if err != nil || removed != "" {
		t.Errorf("Expected empty removal to be a no-op, got %q (%v)", removed, err)
	}

	ok, err := svc.IsAuthorized("")
	if err != nil || ok {
		t.Errorf("Expected empty plate to be unauthorized, got %v (%v)", ok, err)
	}
}

func TestAuthorizedService_RemoveAbsent(t *testing.T) {
	svc, _ := newAuthorized(t)

	removed, err := svc.Remove("nope 1")
	if err != nil {
		t.Fatalf("Removing an absent plate must not fail: %v", err)
	}
	if removed != "NOPE 1" {
		t.Errorf("Expected 'NOPE 1', got %q", removed)
	}
}

func TestAuthorizedService_PersistsAcrossInstances(t *testing.T) {
	svc, path := newAuthorized(t)
	if _, err := svc.Add("KA 01"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	repo, err := jsonfile.NewPlateRepository(path)
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}
	plates, err := NewAuthorizedService(repo).List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(plates, []string{"KA 01"}) {
		t.Errorf("Expected [KA 01] after reopen, got %v", plates)
	}
}

func TestAuthorizedService_ConcurrentAdds(t *testing.T) {
	svc, _ := newAuthorized(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Add(string(rune('A'+i)) + " 1"); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	plates, err := svc.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(plates) != 20 {
		t.Errorf("Expected 20 plates with no lost updates, got %d", len(plates))
	}
}
