// Package imageproc decodes uploads and prepares crops, overlays and tensors
// for the model backends.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"lprserver/internal/model"
)

// JPEGQuality is used for crops sent to remote readers and for debug overlays.
const JPEGQuality = 90

var (
	// ErrInvalidImage is the parent of every input-image error.
	ErrInvalidImage = errors.New("invalid image")
	ErrEmptyImage   = fmt.Errorf("%w: empty payload", ErrInvalidImage)
	ErrDecodeImage  = fmt.Errorf("%w: unsupported or corrupt image data", ErrInvalidImage)
)

var (
	boxColor   = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	labelColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Decode turns raw upload bytes into an RGB image, honouring EXIF orientation.
func Decode(raw []byte) (*image.NRGBA, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		// Some encoders produce extended WebP the x/image decoder rejects.
		webpImg, webpErr := webp.Decode(bytes.NewReader(raw))
		if webpErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
		}
		img = webpImg
	}

	return imaging.Clone(img), nil
}

// Crop returns the region of img covered by box. Box coordinates are in the
// image's own coordinate space, so they are not offset by Bounds().Min. A
// zero-area box yields an empty image.
func Crop(img image.Image, box model.BoundingBox) *image.NRGBA {
	return imaging.Crop(img, box.Rect())
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMat converts img into a BGR gocv.Mat. The caller owns the Mat.
func ToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image to mat: %w", err)
	}
	return mat, nil
}

// RenderDetections draws every detection whose confidence is at least
// threshold, labelled with its confidence. The input image is not modified.
func RenderDetections(img image.Image, detections []model.Detection, threshold float64) *image.NRGBA {
	canvas := imaging.Clone(img)
	origin := img.Bounds().Min

	for _, det := range detections {
		if det.Confidence < threshold {
			continue
		}
		rect := det.BBox.Rect().Sub(origin)
		drawRect(canvas, rect, 2)
		drawLabel(canvas, fmt.Sprintf("plate %.2f", det.Confidence), rect.Min)
	}

	return canvas
}

func drawRect(dst *image.NRGBA, r image.Rectangle, thickness int) {
	src := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a filled band above pt, or below it when the box
// touches the top edge.
func drawLabel(dst *image.NRGBA, text string, pt image.Point) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	top := pt.Y - height
	if top < dst.Bounds().Min.Y {
		top = pt.Y
	}
	band := image.Rect(pt.X, top, pt.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, band, image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(pt.X + 2),
			Y: fixed.I(top + face.Metrics().Ascent.Ceil() + 1),
		},
	}
	d.DrawString(text)
}
