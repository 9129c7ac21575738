package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lakra-backend/internal/config"
	"lakra-backend/internal/database"
	"lakra-backend/internal/logging"
	"lakra-backend/internal/metrics"
	"lakra-backend/internal/router"
	"lakra-backend/internal/scoring"
	"lakra-backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title           Lakra Annotation API
// @version         1.0
// @description     Translation annotation, peer evaluation and MT quality assessment.
// @host            localhost:8000
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Init(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("database migrate failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		logger.Error("metrics setup failed", "error", err)
		os.Exit(1)
	}

	blobs, err := storage.NewLocalStore(cfg.UploadDir, "/uploads")
	if err != nil {
		logger.Error("upload storage setup failed", "error", err)
		os.Exit(1)
	}

	var scorer scoring.Scorer = scoring.NewHeuristicScorer()
	if llm := scoring.NewLLMScorer(cfg.ScorerAPIKey, cfg.ScorerAPIURL, cfg.ScorerModel, cfg.ScorerRatePerSec); llm.IsAvailable() {
		scorer = llm
		logger.Info("mt scorer: llm", "model", cfg.ScorerModel)
	} else {
		logger.Info("SCORER_API_KEY not set, using heuristic mt scorer")
	}

	deps := router.Deps{
		Config:   cfg,
		DB:       db,
		Blobs:    blobs,
		Scorer:   scorer,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	}
	r := router.New(deps, router.NewServices(deps))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.APIHost, cfg.APIPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
