package handler

import (
	"net/http"

	"lprserver/internal/config"
	"lprserver/internal/dto"
	"lprserver/internal/logger"
	"lprserver/internal/service"
)

// HealthHandler reports liveness. It does not look at model state.
func HealthHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, dto.HealthResponse{Status: "ok", App: cfg.AppName})
	}
}

// CapabilitiesHandler returns which models were loaded at startup.
func CapabilitiesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, manager.Capabilities())
	}
}
