package handler

import (
	"errors"
	"io"
	"net/http"

	"lprserver/internal/config"
	"lprserver/internal/dto"
	"lprserver/internal/logger"
	"lprserver/internal/service"
	"lprserver/internal/service/imageproc"
)

const (
	// UploadSource tags reads that came in through the HTTP API.
	UploadSource = "upload"

	multipartMemory = 8 << 20
)

const noFileMessage = "No file uploaded"

// InferImageHandler runs the pipeline on the multipart "file" field.
func InferImageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, status, message := readUpload(w, r, cfg)
		if status != http.StatusOK {
			respondError(w, logger, status, message)
			return
		}

		result, err := manager.HandleImage(r.Context(), raw, UploadSource)
		if err != nil {
			respondInferenceError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, result)
	}
}

// DebugImageHandler returns the upload as JPEG with detection boxes drawn on
// it. Only detections at or above the configured threshold are drawn.
func DebugImageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, status, message := readUpload(w, r, cfg)
		if status != http.StatusOK {
			respondError(w, logger, status, message)
			return
		}

		img, detections, err := manager.GetInferenceService().Detect(r.Context(), raw)
		if err != nil {
			respondInferenceError(w, logger, err)
			return
		}

		overlay := imageproc.RenderDetections(img, detections, cfg.ConfidenceThreshold)
		data, err := imageproc.EncodeJPEG(overlay)
		if err != nil {
			logger.Error("Failed to encode debug image: %v", err)
			respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

// StreamPlaceholderHandler answers for the not yet available camera stream.
func StreamPlaceholderHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, dto.StreamStatus{
			Status:  "not_implemented",
			Message: "Camera stream ingestion will be added in a later milestone.",
		})
	}
}

// readUpload returns the bytes of the "file" form field, or the status and
// message to reply with.
func readUpload(w http.ResponseWriter, r *http.Request, cfg *config.Config) ([]byte, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > cfg.MaxUploadBytes() {
			return nil, http.StatusRequestEntityTooLarge, "Uploaded file is too large"
		}
		return nil, http.StatusBadRequest, noFileMessage
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		return nil, http.StatusBadRequest, noFileMessage
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, "Failed to read uploaded file"
	}
	return raw, http.StatusOK, ""
}

func respondInferenceError(w http.ResponseWriter, logger *logger.Logger, err error) {
	if errors.Is(err, service.ErrInvalidImage) {
		respondError(w, logger, http.StatusBadRequest, err.Error())
		return
	}
	logger.Error("Inference failed: %v", err)
	respondError(w, logger, http.StatusInternalServerError, "Internal Server Error")
}
