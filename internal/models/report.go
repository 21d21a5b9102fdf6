package models

import "time"

// ReportFormat selects the rendering for a generated report.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus tracks a report job through the queue.
type ReportStatus string

const (
	ReportStatusQueued  ReportStatus = "QUEUED"
	ReportStatusRunning ReportStatus = "RUNNING"
	ReportStatusDone    ReportStatus = "DONE"
	ReportStatusFailed  ReportStatus = "FAILED"
)

// ReportJob is an asynchronous sales report request stored in report_jobs.
type ReportJob struct {
	ID           string       `db:"id" json:"id"`
	Format       ReportFormat `db:"format" json:"format"`
	Status       ReportStatus `db:"status" json:"status"`
	FilePath     string       `db:"file_path" json:"-"`
	ErrorMessage string       `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}

// SalesRow aggregates sold tickets and revenue for one session.
type SalesRow struct {
	SessionID    string    `db:"session_id"`
	MovieTitle   string    `db:"movie_title"`
	SessionStart time.Time `db:"session_start"`
	Sold         int       `db:"sold"`
	Revenue      string    `db:"revenue"`
}
