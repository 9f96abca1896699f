package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/matchpoint/brackets"
	"github.com/Dosada05/matchpoint/config"
	"github.com/Dosada05/matchpoint/db"
	"github.com/Dosada05/matchpoint/handlers"
	"github.com/Dosada05/matchpoint/repositories"
	api "github.com/Dosada05/matchpoint/routes"
	"github.com/Dosada05/matchpoint/services"
	"github.com/Dosada05/matchpoint/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, logo upload disabled")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("websocket hub started")

	transactor := repositories.NewSQLTransactor(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	entryRepo := repositories.NewPostgresEntryRepository(dbConn)
	rosterRepo := repositories.NewPostgresTournamentPairRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	slotRepo := repositories.NewPostgresSlotRepository(dbConn)
	pairRepo := repositories.NewPostgresMatchPairRepository(dbConn)
	scoreRepo := repositories.NewPostgresScoreRepository(dbConn)
	pointRepo := repositories.NewPostgresPointRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo, tournamentRepo, matchRepo, cfg.JWTSecretKey)
	tournamentService := services.NewTournamentService(tournamentRepo, userRepo, authService, uploader, logger)
	entryService := services.NewEntryService(transactor, tournamentRepo, entryRepo, rosterRepo, matchRepo, scoreRepo, authService, logger)
	matchFlowService := services.NewMatchFlowService(matchRepo, slotRepo, pairRepo, scoreRepo, rosterRepo, wsHub)
	drawService := services.NewDrawService(
		transactor, tournamentRepo, entryRepo, phaseRepo, matchRepo,
		slotRepo, pairRepo, scoreRepo, rosterRepo,
		matchFlowService, authService, wsHub, logger,
	)
	scoreService := services.NewScoreService(transactor, matchRepo, phaseRepo, scoreRepo, pointRepo, wsHub, logger)
	logger.Info("services initialized")

	statusScheduler, err := services.NewStatusScheduler(tournamentRepo, cfg.SchedulerInterval, logger)
	if err != nil {
		logger.Error("failed to create status scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	if err := statusScheduler.Start(schedulerCtx); err != nil {
		logger.Error("failed to start status scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := statusScheduler.Shutdown(); err != nil {
			logger.Error("failed to shut down status scheduler", slog.Any("error", err))
		}
	}()
	logger.Info("status scheduler started", slog.Duration("interval", cfg.SchedulerInterval))

	authHandler := handlers.NewAuthHandler(authService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	entryHandler := handlers.NewEntryHandler(entryService)
	drawHandler := handlers.NewDrawHandler(drawService)
	matchHandler := handlers.NewMatchHandler(matchFlowService, scoreService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authService,
		authHandler,
		tournamentHandler,
		entryHandler,
		drawHandler,
		matchHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
