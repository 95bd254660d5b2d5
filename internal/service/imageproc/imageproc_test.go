package imageproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"lprserver/internal/model"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, solidImage(40, 20, gray), nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		raw     []byte
		wantErr error
		wantW   int
		wantH   int
	}{
		{"png", encodePNG(t, solidImage(100, 50, gray)), nil, 100, 50},
		{"jpeg", jpegBuf.Bytes(), nil, 40, 20},
		{"empty", nil, ErrEmptyImage, 0, 0},
		{"garbage", []byte("definitely not an image"), ErrDecodeImage, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, ErrInvalidImage) {
					t.Errorf("Expected error to wrap ErrInvalidImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := solidImage(100, 50, color.White)

	crop := Crop(img, model.BoundingBox{X1: 10, Y1: 10, X2: 60, Y2: 40})
	if crop.Bounds().Dx() != 50 || crop.Bounds().Dy() != 30 {
		t.Errorf("Expected 50x30 crop, got %v", crop.Bounds())
	}

	empty := Crop(img, model.BoundingBox{X1: 10, Y1: 10, X2: 10, Y2: 40})
	if !empty.Bounds().Empty() {
		t.Errorf("Expected empty crop, got %v", empty.Bounds())
	}
}

func TestCrop_SubImageOrigin(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	full := solidImage(100, 100, color.Black)
	full.Set(25, 25, red)

	sub := full.SubImage(image.Rect(10, 10, 60, 60))
	crop := Crop(sub, model.BoundingBox{X1: 20, Y1: 20, X2: 40, Y2: 40})

	if crop.Bounds().Dx() != 20 || crop.Bounds().Dy() != 20 {
		t.Fatalf("Expected 20x20 crop, got %v", crop.Bounds())
	}
	if got := crop.NRGBAAt(5, 5); got != red {
		t.Errorf("Expected marker pixel at (5,5), got %v", got)
	}
	if got := crop.NRGBAAt(0, 0); got.R != 0 || got.A != 255 {
		t.Errorf("Expected black at crop origin, got %v", got)
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(solidImage(16, 8, color.Black))
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Output is not a jpeg: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Errorf("Unexpected size %v", img.Bounds())
	}
}

func TestRenderDetections_Threshold(t *testing.T) {
	img := solidImage(100, 60, color.Black)
	detections := []model.Detection{
		{BBox: model.BoundingBox{X1: 10, Y1: 30, X2: 50, Y2: 55}, Confidence: 0.9},
		{BBox: model.BoundingBox{X1: 60, Y1: 30, X2: 95, Y2: 55}, Confidence: 0.1},
	}

	out := RenderDetections(img, detections, 0.25)

	if got := out.NRGBAAt(10, 40); got != boxColor {
		t.Errorf("Expected box edge at (10,40), got %v", got)
	}
	if got := out.NRGBAAt(60, 40); got == boxColor {
		t.Error("Detection below threshold should not be drawn")
	}
	if r, _, _, _ := img.At(10, 40).RGBA(); r != 0 {
		t.Error("Source image must not be modified")
	}
}

func TestRenderDetections_SubImageOrigin(t *testing.T) {
	full := solidImage(100, 100, color.Black)
	sub := full.SubImage(image.Rect(10, 10, 90, 90))
	detections := []model.Detection{
		{BBox: model.BoundingBox{X1: 40, Y1: 50, X2: 70, Y2: 80}, Confidence: 0.9},
	}

	out := RenderDetections(sub, detections, 0.25)

	if got := out.NRGBAAt(30, 55); got != boxColor {
		t.Errorf("Expected left edge at canvas (30,55), got %v", got)
	}
	if got := out.NRGBAAt(40, 55); got == boxColor {
		t.Error("Box must not be drawn at the un-shifted position")
	}
}
