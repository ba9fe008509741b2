package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"convertflow/internal/analyzer"
	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/eligibility"
	"convertflow/internal/engine"
	"convertflow/internal/engine/adobe"
	"convertflow/internal/engine/docai"
	"convertflow/internal/engine/libreoffice"
	"convertflow/internal/guardrail"
	"convertflow/internal/handler"
	"convertflow/internal/middleware"
	"convertflow/internal/port"
	"convertflow/internal/qa"
	"convertflow/internal/repository/postgres"
	"convertflow/internal/router"
	"convertflow/internal/service"
	s3storage "convertflow/internal/storage/s3"
)

// @title convertflow API
// @version 1.0
// @description PDF conversion routing, credit billing and QA guardrails.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := config.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	guardrail.LogStartup(logger, cfg.Flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	creditRepo := postgres.NewCreditRepo(db)
	usageRepo := postgres.NewUsageRepo(db)
	qaRepo := postgres.NewQARecordRepo(db)

	// Initialize storage
	artifacts, err := s3storage.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize engines. LibreOffice is always available; the paid engines
	// are registered only when configured.
	engines := []port.ConversionEngine{libreoffice.NewEngine(&cfg.Engines.LibreOffice)}
	timeouts := map[domain.Engine]time.Duration{
		domain.EngineLibreOffice: cfg.Engines.LibreOffice.Timeout(),
	}
	var probe port.LayoutProbe
	if cfg.Engines.DocAI.Endpoint != "" {
		docaiClient := docai.NewClient(&cfg.Engines.DocAI)
		engines = append(engines, docaiClient)
		timeouts[domain.EngineDocAI] = cfg.Engines.DocAI.Timeout()
		probe = docaiClient
	} else {
		logger.Warn("docai endpoint not configured, routing on text extractability only")
	}
	if cfg.Engines.Adobe.ClientID != "" && cfg.Engines.Adobe.APIKey != "" {
		engines = append(engines, adobe.NewEngine(&cfg.Engines.Adobe))
		timeouts[domain.EngineAdobe] = cfg.Engines.Adobe.Timeout()
	} else {
		logger.Warn("adobe credentials not configured, expensive engine unavailable")
	}
	runner := engine.NewRunner(engines, timeouts, logger)
	runner.SetRateLimit(domain.EngineDocAI, cfg.Engines.DocAI.RequestsPerSecond, cfg.Engines.DocAI.Burst)
	runner.SetRateLimit(domain.EngineAdobe, cfg.Engines.Adobe.RequestsPerSecond, cfg.Engines.Adobe.Burst)

	// Initialize routing, admission and guardrails
	flags := guardrail.NewFlags(cfg.Flags)
	guard := guardrail.NewGuard(flags, usageRepo, logger)
	docAnalyzer := analyzer.NewAnalyzer(cfg.Routing, logger)
	checker := eligibility.NewChecker(cfg.Tiers)
	validator := qa.NewValidator(flags, cfg.QA, qaRepo, logger)

	// Initialize services
	creditSvc := service.NewCreditService(creditRepo, logger)
	conversionSvc := service.NewConversionService(
		docAnalyzer, probe, checker, guard, runner, validator,
		creditSvc, artifacts, cfg.S3.PresignExpiry, logger,
	)

	// Initialize handlers
	handlers := router.Handlers{
		Conversion: handler.NewConversionHandler(conversionSvc, cfg.Server.MaxUploadMB*1024*1024, cfg.Server.ConversionDeadline()),
		Credit:     handler.NewCreditHandler(creditSvc),
		Admin:      handler.NewAdminHandler(guard, creditSvc, validator, qaRepo),
		Health: handler.NewHealthHandler(func(ctx context.Context) error {
			return postgres.Ping(ctx, db)
		}),
	}

	// Setup router
	r := router.Setup(logger, cfg.CORS.AllowedOrigins, middleware.NewTokenVerifier(cfg.JWT), handlers)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment),
			zap.Int("engines", len(engines)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
