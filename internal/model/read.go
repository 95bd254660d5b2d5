package model

import "time"

// PlateRead is a stored inference outcome.
type PlateRead struct {
	ID         string      `json:"id"`
	PlateText  string      `json:"plate_text"`
	Confidence *float64    `json:"confidence,omitempty"`
	Authorized bool        `json:"authorized"`
	Source     string      `json:"source"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections"`
}

// ReadFilter contains filtering options for querying reads.
type ReadFilter struct {
	Plate      string
	Authorized *bool
	Since      time.Time
	Limit      int
	Offset     int
}
