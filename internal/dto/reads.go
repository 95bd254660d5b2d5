package dto

import (
	"encoding/json"
	"time"

	"lprserver/internal/model"
)

// ReadInfo is one entry of the read history.
type ReadInfo struct {
	ID         string            `json:"id"`
	PlateText  string            `json:"plate_text"`
	Confidence *float64          `json:"confidence"`
	Authorized bool              `json:"authorized"`
	Source     string            `json:"source"`
	Timestamp  time.Time         `json:"timestamp"`
	Detections []model.Detection `json:"detections"`
}

// MarshalJSON renders the timestamp in UTC with millisecond precision.
func (r ReadInfo) MarshalJSON() ([]byte, error) {
	type Alias ReadInfo
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		Alias
	}{
		Timestamp: r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Alias:     (Alias)(r),
	})
}

// NewReadInfo converts a stored read.
func NewReadInfo(read model.PlateRead) ReadInfo {
	detections := read.Detections
	if detections == nil {
		detections = []model.Detection{}
	}
	return ReadInfo{
		ID:         read.ID,
		PlateText:  read.PlateText,
		Confidence: read.Confidence,
		Authorized: read.Authorized,
		Source:     read.Source,
		Timestamp:  read.Timestamp,
		Detections: detections,
	}
}

// ReadsData is a paginated response payload for the read history.
type ReadsData struct {
	Reads       []ReadInfo `json:"reads"`
	Length      int        `json:"length"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Limit       int        `json:"pageSize"`
}
