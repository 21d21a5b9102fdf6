package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
	"github.com/GutnikElina/cinema-api/pkg/jobs"
	"github.com/GutnikElina/cinema-api/pkg/storage"
)

type mockReportStore struct {
	byID   map[string]*models.ReportJob
	nextID int
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{byID: make(map[string]*models.ReportJob), nextID: 1}
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", m.nextID)
		m.nextID++
	}
	clone := *job
	m.byID[job.ID] = &clone
	return nil
}

func (m *mockReportStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (m *mockReportStore) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, filePath, errorMessage string, finishedAt *time.Time) error {
	job, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	job.FilePath = filePath
	job.ErrorMessage = errorMessage
	job.FinishedAt = finishedAt
	return nil
}

func (m *mockReportStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var pruned int64
	for id, job := range m.byID {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(m.byID, id)
			pruned++
		}
	}
	return pruned, nil
}

type mockSalesSource struct {
	rows []models.SalesRow
	err  error
}

func (m *mockSalesSource) SalesSummary(ctx context.Context) ([]models.SalesRow, error) {
	return m.rows, m.err
}

// inlineQueue runs the handler synchronously instead of via workers.
type inlineQueue struct {
	handler jobs.Handler
	err     error
}

func (q *inlineQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	return q.handler(context.Background(), job)
}

func newTestReportService(t *testing.T, sales *mockSalesSource) (*ReportService, *mockReportStore) {
	t.Helper()
	store := newMockReportStore()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadSigner("report_secret", time.Hour)
	svc := NewReportService(store, sales, files, signer, ReportServiceConfig{
		APIPrefix: "/api/v1",
		ResultTTL: time.Hour,
	}, zap.NewNop())
	svc.BindQueue(&inlineQueue{handler: svc.Process})
	return svc, store
}

func sampleSales() *mockSalesSource {
	return &mockSalesSource{rows: []models.SalesRow{
		{
			SessionID:    "s1",
			MovieTitle:   "Interstellar",
			SessionStart: time.Date(2025, 3, 2, 19, 0, 0, 0, time.UTC),
			Sold:         42,
			Revenue:      "420.00",
		},
	}}
}

func TestReportCreateRendersCSV(t *testing.T) {
	svc, store := newTestReportService(t, sampleSales())

	status, err := svc.CreateJob(context.Background(), "admin", models.ReportFormatCSV)
	require.NoError(t, err)

	job := store.byID[status.ID]
	require.NotNil(t, job)
	assert.Equal(t, models.ReportStatusDone, job.Status)
	assert.NotEmpty(t, job.FilePath)
	assert.True(t, strings.HasSuffix(job.FilePath, ".csv"))
}

func TestReportStatusCarriesDownloadURL(t *testing.T) {
	svc, _ := newTestReportService(t, sampleSales())

	created, err := svc.CreateJob(context.Background(), "admin", models.ReportFormatCSV)
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), created.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusDone, status.Status)
	assert.Contains(t, status.DownloadURL, "/api/v1/reports/download/")
}

func TestReportStatusOwnershipEnforced(t *testing.T) {
	svc, _ := newTestReportService(t, sampleSales())

	created, err := svc.CreateJob(context.Background(), "admin", models.ReportFormatCSV)
	require.NoError(t, err)

	_, err = svc.Status(context.Background(), created.ID, "intruder")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportDownloadRoundTrip(t *testing.T) {
	svc, _ := newTestReportService(t, sampleSales())

	created, err := svc.CreateJob(context.Background(), "admin", models.ReportFormatCSV)
	require.NoError(t, err)
	status, err := svc.Status(context.Background(), created.ID, "admin")
	require.NoError(t, err)

	token := status.DownloadURL[strings.LastIndex(status.DownloadURL, "/")+1:]
	download, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	assert.Equal(t, models.ReportFormatCSV, download.Format)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
}

func TestReportDownloadRejectsForgedToken(t *testing.T) {
	svc, _ := newTestReportService(t, sampleSales())

	_, err := svc.Download(context.Background(), "not.a.real.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestReportSalesFailureMarksJobFailed(t *testing.T) {
	svc, store := newTestReportService(t, &mockSalesSource{err: sql.ErrConnDone})

	_, err := svc.CreateJob(context.Background(), "admin", models.ReportFormatPDF)
	require.Error(t, err)

	var job *models.ReportJob
	for _, j := range store.byID {
		job = j
	}
	require.NotNil(t, job)
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	assert.NotEmpty(t, job.ErrorMessage)
}

func TestReportUnsupportedFormat(t *testing.T) {
	svc, _ := newTestReportService(t, sampleSales())

	_, err := svc.CreateJob(context.Background(), "admin", models.ReportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
