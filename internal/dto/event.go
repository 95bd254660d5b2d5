package dto

import (
	"time"

	"lprserver/internal/model"
)

// InferenceEvent is pushed to websocket viewers after every inference.
type InferenceEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Result    *model.InferenceResult `json:"result"`
}
