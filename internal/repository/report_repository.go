package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/GutnikElina/cinema-api/internal/models"
)

// ReportRepository provides database access for report job records.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists a queued report job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	const query = `INSERT INTO report_jobs (id, format, status, file_path, error_message, created_by, created_at)
		VALUES (:id, :format, :status, :file_path, :error_message, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns the job with the given identifier.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, format, status, file_path, error_message, created_by, created_at, finished_at
		FROM report_jobs WHERE id = $1 LIMIT 1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report job: %w", err)
	}
	return &job, nil
}

// UpdateStatus records the outcome of a processing step.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, filePath, errorMessage string, finishedAt *time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, file_path = $3, error_message = $4, finished_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, errorMessage, finishedAt); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// DeleteFinishedBefore prunes terminal jobs older than the cutoff.
func (r *ReportRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM report_jobs WHERE status IN ('DONE', 'FAILED') AND finished_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune report jobs: %w", err)
	}
	return result.RowsAffected()
}
