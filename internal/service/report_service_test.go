package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/repository"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(context.Context, *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func newReportServiceForTest(t *testing.T) (*ReportService, *repository.MemoryReportRepository, *queueStub, *ExportService) {
	t.Helper()
	repo := repository.NewMemoryReportRepository()
	queue := &queueStub{}
	exporter, _ := newExportServiceForTest(t)
	svc := NewReportService(repo, queue, exporter, nil, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return svc, repo, queue, exporter
}

func seedJob(t *testing.T, repo *repository.MemoryReportRepository, job models.ReportJob) *models.ReportJob {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &job))
	return &job
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeGrades,
		Format: models.ReportFormatXLSX,
		Class:  " 7b ",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].ID)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "7b", stored.Params.Class)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, queue, _ := newReportServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: "certificate", Format: models.ReportFormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeGrades, Format: "docx"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, queue.jobs)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queue.err = errors.New("queue full")

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeOverview, Format: models.ReportFormatCSV})
	require.Error(t, err)

	queued, err := repo.ListQueued(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, queued, "a job that could not be enqueued is marked failed")
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	msg := "boom"
	job := seedJob(t, repo, models.ReportJob{
		Type:         models.ReportTypeSubjects,
		Params:       models.ReportJobParams{Format: models.ReportFormatPDF},
		Status:       models.ReportStatusFailed,
		Progress:     100,
		ErrorMessage: &msg,
	})

	resp, err := svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, resp.Status)
	assert.Equal(t, models.ReportFormatPDF, resp.Format)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "boom", *resp.Error)

	_, err = svc.GetStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exporter := newReportServiceForTest(t)
	job := seedJob(t, repo, models.ReportJob{
		Type:   models.ReportTypeGrades,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	})

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden), "job has no result yet")

	finished := models.ReportStatusFinished
	require.NoError(t, repo.Update(context.Background(), job.ID, repository.UpdateReportJobParams{
		Status:    &finished,
		ResultURL: &result.URL,
	}))

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	require.NoError(t, download.File.Close())

	require.NoError(t, exporter.Delete(result.RelativePath))
	_, err = svc.ResolveDownload(context.Background(), result.Token)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	seedJob(t, repo, models.ReportJob{Type: models.ReportTypeGrades, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	seedJob(t, repo, models.ReportJob{Type: models.ReportTypeGrades, Status: models.ReportStatusFinished, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})

	svc.RecoverPendingJobs(context.Background())
	assert.Len(t, queue.jobs, 1)
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := repository.NewMemoryReportRepository()
	job := seedJob(t, repo, models.ReportJob{Type: models.ReportTypeGrades, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	metrics := NewMetricsService()
	worker := NewReportWorker(repo, exportStub{result: &ExportResult{URL: "/api/v1/export/token"}}, metrics, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/export/token", *stored.ResultURL)
	assert.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerHandleFailureRetriesThenFails(t *testing.T) {
	repo := repository.NewMemoryReportRepository()
	job := seedJob(t, repo, models.ReportJob{Type: models.ReportTypeGrades, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, nil, 2, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))
	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, stored.Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2}))
	stored, err = repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "boom", *stored.ErrorMessage)
}

func TestReportWorkerGiveUp(t *testing.T) {
	repo := repository.NewMemoryReportRepository()
	job := seedJob(t, repo, models.ReportJob{Type: models.ReportTypeGrades, Status: models.ReportStatusProcessing, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	worker := NewReportWorker(repo, exportStub{}, nil, 3, zap.NewNop())

	worker.GiveUp(jobs.Job{ID: job.ID}, errors.New("queue gave up"))
	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Equal(t, "queue gave up", *stored.ErrorMessage)

	worker.GiveUp(jobs.Job{ID: job.ID}, errors.New("again"))
	stored, err = repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "queue gave up", *stored.ErrorMessage)
}
