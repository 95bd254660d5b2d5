package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lprserver/internal/config"
	"lprserver/internal/logger"
	"lprserver/internal/repository"
	"lprserver/internal/repository/jsonfile"
	"lprserver/internal/repository/sqlite"
	"lprserver/internal/route"
	"lprserver/internal/service"
	"lprserver/internal/service/ai"
	"lprserver/internal/service/storage"
	"lprserver/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	models     *ai.Models
	readRepo   repository.ReadRepository
	readBuffer *storage.ReadBuffer
	hubService *websocket.HubService
	manager    *service.Manager
}

// NewApp loads configuration, opens storage and negotiates model
// capabilities. Missing models are not an error.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)
	a := &App{config: cfg, logger: log}

	if cfg.StoreBackend == config.StoreSQLite || cfg.HistoryEnabled {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.db = db
		log.Info("Database opened at %s", cfg.DatabasePath)
	}

	plateRepo, err := a.plateRepository()
	if err != nil {
		a.close()
		return nil, err
	}

	a.models = ai.LoadModels(context.Background(), cfg, log)

	inference := service.NewInferenceService(
		service.NewDetectionStage(a.models.Locator),
		service.NewRecognitionStage(a.models.Reader),
		cfg.SelectionPolicy, log)

	a.hubService = websocket.NewHubService(log)
	if cfg.HistoryEnabled {
		a.readRepo = sqlite.NewReadRepository(a.db)
		a.readBuffer = storage.NewReadBuffer(cfg, log, a.readRepo)
	}

	a.manager = service.NewManager(inference, service.NewAuthorizedService(plateRepo),
		a.readBuffer, a.hubService, a.models.Capabilities, log)

	return a, nil
}

func (a *App) plateRepository() (repository.PlateRepository, error) {
	if a.config.StoreBackend == config.StoreSQLite {
		return sqlite.NewPlateRepository(a.db), nil
	}

	repo, err := jsonfile.NewPlateRepository(a.config.AuthorizedPlatesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open authorized plates file: %w", err)
	}
	a.logger.Info("Authorized plates stored in %s", repo.Path())
	return repo, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully and
// flushes pending reads.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hubService.Run(ctx)
	}()
	if a.readBuffer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.readBuffer.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.config, a.logger, a.readRepo),
		ReadHeaderTimeout: 10 * time.Second,
	}

	caps := a.models.Capabilities
	a.logger.Info("%s listening on http://localhost:%d", a.config.AppName, a.config.Port)
	a.logger.Info("Detector: %s (available: %t)", caps.DetectorBackend, caps.DetectorAvailable)
	a.logger.Info("Recognizer: %s (available: %t)", caps.RecognizerBackend, caps.RecognizerAvailable)
	a.logger.Info("Authorized plates store: %s", a.config.StoreBackend)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		stop()
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shut down: %v", err)
	}

	wg.Wait()
	a.close()

	return serveErr
}

func (a *App) close() {
	if a.models != nil {
		if err := a.models.Close(); err != nil {
			a.logger.Error("Failed to release models: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database: %v", err)
		}
	}
}
