package ai

import (
	"context"
	"fmt"
	"image"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"lprserver/internal/service/imageproc"
)

// TextDetectionAPI is the part of the Rekognition client the reader uses.
type TextDetectionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionReader reads plates with AWS Rekognition DetectText.
type RekognitionReader struct {
	client TextDetectionAPI
}

// NewRekognitionReader loads the default AWS configuration for region and
// fails when no credentials can be resolved.
func NewRekognitionReader(ctx context.Context, region string) (*RekognitionReader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("no AWS credentials: %w", err)
	}

	return NewRekognitionReaderWithClient(rekognition.NewFromConfig(awsCfg)), nil
}

// NewRekognitionReaderWithClient wraps an existing client.
func NewRekognitionReaderWithClient(client TextDetectionAPI) *RekognitionReader {
	return &RekognitionReader{client: client}
}

// ReadText joins every LINE detection in reading order. Confidence is the
// mean line confidence scaled to [0, 1]; it is nil when nothing was read.
func (r *RekognitionReader) ReadText(ctx context.Context, img image.Image) (Reading, error) {
	imgBytes, err := imageproc.EncodeJPEG(img)
	if err != nil {
		return Reading{}, err
	}

	result, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: imgBytes},
	})
	if err != nil {
		return Reading{}, fmt.Errorf("rekognition DetectText failed: %w", err)
	}

	return joinLines(result.TextDetections), nil
}

func joinLines(detections []types.TextDetection) Reading {
	var (
		lines []string
		total float64
	)
	for _, td := range detections {
		if td.Type != types.TextTypesLine || td.DetectedText == nil {
			continue
		}
		lines = append(lines, *td.DetectedText)
		if td.Confidence != nil {
			total += float64(*td.Confidence)
		}
	}

	if len(lines) == 0 {
		return Reading{}
	}

	confidence := total / float64(len(lines)) / 100
	return Reading{Text: strings.Join(lines, " "), Confidence: &confidence}
}
