package main

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/repository"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/pkg/cache"
	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
	"github.com/noah-isme/gradebook-api/pkg/storage"
)

type documentStore interface {
	Load(ctx context.Context) (models.RecordSet, error)
	Save(ctx context.Context, records models.RecordSet) error
}

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

func newDocumentStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, metrics *service.MetricsService, logr *zap.Logger) (documentStore, error) {
	if cfg.Store.Driver == config.StoreDriverPostgres {
		store := repository.NewPostgresDocumentStore(db, cfg.Store.DocumentName, metrics, logr)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := repository.NewFileDocumentStore(cfg.Store.Path, metrics, logr)
	if err != nil {
		return nil, err
	}
	logr.Sugar().Infow("using file store", "path", store.Path())
	return store, nil
}

func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (service.CacheRepository, func(), error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewCacheRepository(client, logr)
		checks["redis"] = repo.Ping
		return repo, func() { _ = repo.Close() }, nil
	default:
		return repository.NewMemoryCacheRepository(cfg.Cache.TTL, 2*cfg.Cache.TTL), func() {}, nil
	}
}

// newReportService wires the job store, the worker queue and the export
// pipeline. Jobs live in postgres when the record document does, in memory
// otherwise.
func newReportService(ctx context.Context, cfg *config.Config, db *sqlx.DB, source *service.GradebookService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ReportService, *jobs.Queue, error) {
	var jobStore reportJobStore
	if db != nil {
		repo := repository.NewReportRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		jobStore = repo
	} else {
		jobStore = repository.NewMemoryReportRepository()
	}

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(source, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil, nil)

	worker := service.NewReportWorker(jobStore, exporter, metrics, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:       cfg.Reports.WorkerConcurrency,
		BufferSize:    64,
		MaxRetries:    cfg.Reports.WorkerRetries,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: time.Minute,
		Logger:        logr,
		OnGiveUp:      worker.GiveUp,
	})
	queue.Start(ctx)

	reports := service.NewReportService(jobStore, queue, exporter, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reports.RecoverPendingJobs(ctx)
	reports.StartCleanup(ctx)
	return reports, queue, nil
}
