package handler

import (
	"encoding/json"
	"net/http"

	"lprserver/internal/dto"
	"lprserver/internal/logger"
	"lprserver/internal/service"
)

// AddAuthorizedHandler stores the normalized plate from {"plate_text": ...}.
func AddAuthorizedHandler(authorized *service.AuthorizedService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AuthorizedPlateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, logger, http.StatusBadRequest, "Invalid request body")
			return
		}

		plate, err := authorized.Add(req.PlateText)
		if err != nil {
			logger.Error("Error adding authorized plate: %v", err)
			respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Authorized plate added: %s", plate)
		respondJSON(w, logger, http.StatusOK, dto.AuthorizedPlateResponse{PlateText: plate, Authorized: true})
	}
}

// ListAuthorizedHandler returns every stored plate in ascending order.
func ListAuthorizedHandler(authorized *service.AuthorizedService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plates, err := authorized.List()
		if err != nil {
			logger.Error("Error listing authorized plates: %v", err)
			respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		response := make([]dto.AuthorizedPlateResponse, 0, len(plates))
		for _, p := range plates {
			response = append(response, dto.AuthorizedPlateResponse{PlateText: p, Authorized: true})
		}
		respondJSON(w, logger, http.StatusOK, response)
	}
}

// RemoveAuthorizedHandler deletes the plate named in the path. Removing an
// unknown plate succeeds.
func RemoveAuthorizedHandler(authorized *service.AuthorizedService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plate, err := authorized.Remove(r.PathValue("plate_text"))
		if err != nil {
			logger.Error("Error removing authorized plate: %v", err)
			respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Authorized plate removed: %s", plate)
		respondJSON(w, logger, http.StatusOK, dto.RemovedPlateResponse{Removed: plate})
	}
}
