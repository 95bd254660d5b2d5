package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"lprserver/internal/dto"
	"lprserver/internal/logger"
)

// respondJSON writes data as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, logger *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// respondError writes {"detail": message}.
func respondError(w http.ResponseWriter, logger *logger.Logger, status int, message string) {
	respondJSON(w, logger, status, dto.ErrorResponse{Detail: message})
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
