package handler

import (
	"net/http"
	"strconv"

	"lprserver/internal/dto"
	"lprserver/internal/logger"
	"lprserver/internal/model"
	"lprserver/internal/plate"
	"lprserver/internal/repository"
)

// GetReadsHandler returns a filtered, paginated page of the read history.
// Query parameters: page, limit, plate, authorized, since (YYYY-MM-DD).
func GetReadsHandler(readRepo repository.ReadRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &model.ReadFilter{
			Plate:  plate.Normalize(q.Get("plate")),
			Since:  parseDate(q.Get("since")),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}
		if v, err := strconv.ParseBool(q.Get("authorized")); err == nil {
			filter.Authorized = &v
		}

		reads, err := readRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying plate reads from database: %v", err)
			respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalCount, err := readRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting plate reads: %v", err)
			totalCount = len(reads)
		}

		infos := make([]dto.ReadInfo, 0, len(reads))
		for _, read := range reads {
			infos = append(infos, dto.NewReadInfo(read))
		}

		respondJSON(w, logger, http.StatusOK, dto.ReadsData{
			Reads:       infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ClearReadsHandler deletes the whole read history.
func ClearReadsHandler(readRepo repository.ReadRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := readRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing plate reads: %v", err)
			respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("All plate reads cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
