package dto

type HealthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
}

// StreamStatus is returned by the stream ingestion placeholder.
type StreamStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
