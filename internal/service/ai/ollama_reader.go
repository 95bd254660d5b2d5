package ai

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"lprserver/internal/service/imageproc"
)

const (
	// OllamaTimeout applies when the caller's context carries no deadline.
	OllamaTimeout = 300 * time.Second

	ollamaPrompt = "Read the license plate in this image. " +
		"Reply with the plate characters only, exactly as printed, and nothing else. " +
		"If no plate is readable reply with an empty message."
)

// OllamaReader asks a vision model served by Ollama to transcribe the plate.
type OllamaReader struct {
	client *api.Client
	model  string
}

// NewOllamaReader connects to the server at rawURL and checks it responds.
func NewOllamaReader(ctx context.Context, rawURL, model string) (*OllamaReader, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host in %q", rawURL)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}
	client := api.NewClient(baseURL, http.DefaultClient)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Heartbeat(pingCtx); err != nil {
		return nil, fmt.Errorf("ollama not reachable at %s: %w", baseURL, err)
	}

	return &OllamaReader{client: client, model: model}, nil
}

// ReadText sends the crop as JPEG and returns the model's answer verbatim.
func (r *OllamaReader) ReadText(ctx context.Context, img image.Image) (Reading, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, OllamaTimeout)
		defer cancel()
	}

	imgBytes, err := imageproc.EncodeJPEG(img)
	if err != nil {
		return Reading{}, err
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: r.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: ollamaPrompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0},
	}

	var content string
	err = r.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return Reading{}, fmt.Errorf("ollama chat error: %w", err)
	}

	return Reading{Text: firstLine(content)}, nil
}

// firstLine drops anything after the first non-empty line; vision models
// occasionally append an explanation.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
