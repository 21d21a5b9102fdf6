package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GutnikElina/cinema-api/internal/models"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
	"github.com/GutnikElina/cinema-api/pkg/export"
	"github.com/GutnikElina/cinema-api/pkg/jobs"
	"github.com/GutnikElina/cinema-api/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus, filePath, errorMessage string, finishedAt *time.Time) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type salesSource interface {
	SalesSummary(ctx context.Context) ([]models.SalesRow, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ReportServiceConfig governs report URLs and retention.
type ReportServiceConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ReportStatusResponse exposes job state plus a download URL once done.
type ReportStatusResponse struct {
	ID           string              `json:"id"`
	Format       models.ReportFormat `json:"format"`
	Status       models.ReportStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	DownloadURL  string              `json:"download_url,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File     *os.File
	Filename string
	Format   models.ReportFormat
}

// ReportService generates sales reports asynchronously: jobs are queued,
// rendered by workers, persisted on disk, and served via signed tokens.
type ReportService struct {
	repo    reportJobStore
	sales   salesSource
	queue   jobDispatcher
	storage reportStorage
	signer  *storage.DownloadSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	cfg     ReportServiceConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService constructs the report service. The queue handler must be
// bound to Process by the caller.
func NewReportService(repo reportJobStore, sales salesSource, store reportStorage, signer *storage.DownloadSigner, cfg ReportServiceConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:    repo,
		sales:   sales,
		storage: store,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BindQueue attaches the dispatcher used by CreateJob. Separate from the
// constructor because the queue handler closes over the service.
func (s *ReportService) BindQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob persists a queued sales report and hands it to the workers.
func (s *ReportService) CreateJob(ctx context.Context, actorID string, format models.ReportFormat) (*ReportStatusResponse, error) {
	switch format {
	case models.ReportFormatCSV, models.ReportFormatPDF:
	case "":
		format = models.ReportFormatCSV
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}

	job := &models.ReportJob{
		Format:    format,
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create report job")
	}

	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report queue not running")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: "sales_report"}); err != nil {
		now := s.now()
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusFailed, "", "failed to enqueue", &now); updateErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	return s.statusResponse(job), nil
}

// Process is the queue handler: it renders the report and stores the file.
func (s *ReportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.FindByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", queued.ID, err)
	}
	if job.Status != models.ReportStatusQueued {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusRunning, "", "", nil); err != nil {
		return fmt.Errorf("mark report job running: %w", err)
	}

	relPath, renderErr := s.render(ctx, job)
	finished := s.now()
	if renderErr != nil {
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusFailed, "", renderErr.Error(), &finished); updateErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(updateErr))
		}
		return renderErr
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusDone, relPath, "", &finished); err != nil {
		return fmt.Errorf("mark report job done: %w", err)
	}
	s.logger.Info("sales report generated", zap.String("job_id", job.ID), zap.String("file", relPath))
	return nil
}

// Status returns job metadata, enforcing ownership.
func (s *ReportService) Status(ctx context.Context, id, actorID string) (*ReportStatusResponse, error) {
	job, err := s.loadOwned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	return s.statusResponse(job), nil
}

// Download resolves a signed token to the stored file.
func (s *ReportService) Download(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, _, err := s.signer.Verify(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusDone || job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &ReportDownload{File: file, Filename: relPath, Format: job.Format}, nil
}

// Delete removes a job record along with its rendered file.
func (s *ReportService) Delete(ctx context.Context, id, actorID string) error {
	job, err := s.loadOwned(ctx, id, actorID)
	if err != nil {
		return err
	}
	if job.FilePath != "" {
		if err := s.storage.Delete(job.FilePath); err != nil {
			s.logger.Warn("failed to delete report file", zap.String("file", job.FilePath), zap.Error(err))
		}
	}
	finished := s.now()
	if err := s.repo.UpdateStatus(ctx, job.ID, models.ReportStatusFailed, "", "deleted", &finished); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete report job")
	}
	return nil
}

// Cleanup prunes expired files and terminal job records.
func (s *ReportService) Cleanup(ctx context.Context) {
	if deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("report file cleanup failed", zap.Error(err))
	} else if len(deleted) > 0 {
		s.logger.Info("report files pruned", zap.Int("count", len(deleted)))
	}
	if _, err := s.repo.DeleteFinishedBefore(ctx, s.now().Add(-s.cfg.ResultTTL)); err != nil {
		s.logger.Warn("report job cleanup failed", zap.Error(err))
	}
}

func (s *ReportService) render(ctx context.Context, job *models.ReportJob) (string, error) {
	rows, err := s.sales.SalesSummary(ctx)
	if err != nil {
		return "", fmt.Errorf("collect sales data: %w", err)
	}

	data := export.Dataset{Headers: []string{"session_id", "movie", "showtime", "tickets_sold", "revenue"}}
	for _, row := range rows {
		data.Rows = append(data.Rows, []string{
			row.SessionID,
			row.MovieTitle,
			row.SessionStart.Format(time.RFC3339),
			fmt.Sprintf("%d", row.Sold),
			row.Revenue,
		})
	}

	var payload []byte
	switch job.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.RenderDataset(data, "sales report")
	default:
		payload, err = s.csv.RenderDataset(data)
	}
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	suffix := job.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	filename := fmt.Sprintf("sales_%s_%s.%s", s.now().Format("20060102_150405"), suffix, job.Format)
	return s.storage.Save(filename, payload)
}

func (s *ReportService) loadOwned(ctx context.Context, id, actorID string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load report job")
	}
	if job.CreatedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return job, nil
}

func (s *ReportService) statusResponse(job *models.ReportJob) *ReportStatusResponse {
	resp := &ReportStatusResponse{
		ID:           job.ID,
		Format:       job.Format,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		FinishedAt:   job.FinishedAt,
	}
	if job.Status == models.ReportStatusDone && job.FilePath != "" {
		if token, expiresAt, err := s.signer.Sign(job.ID, job.FilePath); err == nil {
			prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
			resp.DownloadURL = fmt.Sprintf("%s/reports/download/%s", prefix, token)
			resp.ExpiresAt = &expiresAt
		}
	}
	return resp
}
