package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradebook-api/api/swagger"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/database"
	"github.com/noah-isme/gradebook-api/pkg/export"
	"github.com/noah-isme/gradebook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradebook-api/pkg/middleware/requestid"
)

// @title Gradebook API
// @version 1.0.0
// @description Grades on the German 1+ to 6 scale with averages, statistics, CSV transfer and reports
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()
	validate := validator.New()
	checks := make(map[string]handler.ReadinessCheck)

	var db *sqlx.DB
	if cfg.Store.Driver == config.StoreDriverPostgres {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck
		checks["postgres"] = db.PingContext
	}

	store, err := newDocumentStore(ctx, cfg, db, metrics, logr)
	if err != nil {
		return err
	}

	cacheRepo, closeCache, err := newCacheRepository(ctx, cfg, logr, checks)
	if err != nil {
		return err
	}
	defer closeCache()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Driver != config.CacheDriverNone)

	gradebook := service.NewGradebookService(store, service.NewStudentIDGenerator(nil), cacheSvc, validate, logr)
	if err := gradebook.Bootstrap(ctx); err != nil {
		return err
	}
	statistics := service.NewStatisticsService(gradebook, cacheSvc, cfg.Cache.TTL, logr)
	csvWriter := export.NewCSVExporterWithOptions(export.CSVOptions{BOM: true, Comma: cfg.Import.Delimiter})
	transfer := service.NewTransferService(gradebook, csvWriter, metrics, service.TransferConfig{
		PreviewRows:  cfg.Import.PreviewRows,
		MaxFileBytes: cfg.Import.MaxFileBytes,
	}, logr)

	handlers := handler.Handlers{
		Students:   handler.NewStudentHandler(gradebook),
		Subjects:   handler.NewSubjectHandler(gradebook),
		Grades:     handler.NewGradeHandler(gradebook),
		Statistics: handler.NewStatisticsHandler(statistics),
		Transfer:   handler.NewTransferHandler(transfer),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	}

	if cfg.Reports.Enabled {
		reports, queue, err := newReportService(ctx, cfg, db, gradebook, metrics, validate, logr)
		if err != nil {
			return err
		}
		metrics.TrackQueue(queue)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := queue.Stop(stopCtx); err != nil {
				logr.Sugar().Warnw("report queue did not drain", "error", err)
			}
		}()
		handlers.Reports = handler.NewReportHandler(reports)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.ResponseMeta())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metrics))
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver, "cache", cfg.Cache.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
