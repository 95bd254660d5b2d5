package route

import (
	"net/http"

	"lprserver/internal/config"
	"lprserver/internal/handler"
	"lprserver/internal/logger"
	"lprserver/internal/middleware"
	"lprserver/internal/repository"
	"lprserver/internal/service"
)

// SetupRoutes registers the API endpoints and wraps the mux with the API key
// middleware. readRepo may be nil when read history is disabled.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	readRepo repository.ReadRepository) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthHandler(cfg, logger))
	mux.HandleFunc("GET /capabilities", handler.CapabilitiesHandler(manager, logger))

	// Inference endpoints
	mux.HandleFunc("POST /infer/image", handler.InferImageHandler(manager, cfg, logger))
	mux.HandleFunc("POST /infer/debug", handler.DebugImageHandler(manager, cfg, logger))
	mux.HandleFunc("POST /infer/stream", handler.StreamPlaceholderHandler(logger))

	// Authorized plates
	authorized := manager.GetAuthorizedService()
	mux.HandleFunc("POST /authorized", handler.AddAuthorizedHandler(authorized, logger))
	mux.HandleFunc("GET /authorized", handler.ListAuthorizedHandler(authorized, logger))
	mux.HandleFunc("DELETE /authorized/{plate_text}", handler.RemoveAuthorizedHandler(authorized, logger))

	// Read history and live events
	if readRepo != nil {
		mux.HandleFunc("GET /api/reads", handler.GetReadsHandler(readRepo, logger))
		mux.HandleFunc("DELETE /api/reads", handler.ClearReadsHandler(readRepo, logger))
	}
	if manager.GetWebsocketService() != nil {
		mux.HandleFunc("GET /api/events", handler.EventsWebsocketHandler(manager, logger))
	}

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	return middleware.AuthMiddleware(cfg.APIKey, logger, mux)
}
