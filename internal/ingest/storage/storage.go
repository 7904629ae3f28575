package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
)

// Storage writes ingested postings to the jobs table.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// UpsertJob inserts job or, when a row with the same apply_url exists,
// overwrites every other column. The existing job_id is kept.
func (s *Storage) UpsertJob(ctx context.Context, job *domain.JobPosting) error {
	query := `
		INSERT INTO jobs (
			job_id, title, company, location, apply_url,
			source_job_id, category, description, employment_type,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			NOW(), NOW()
		)
		ON CONFLICT (apply_url) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			source_job_id = EXCLUDED.source_job_id,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			employment_type = EXCLUDED.employment_type,
			updated_at = NOW()
		RETURNING job_id
	`

	var jobID string
	err := s.db.QueryRowxContext(
		ctx,
		query,
		uuid.NewString(),
		job.Title,
		job.Company,
		job.Location,
		job.ApplyURL,
		job.SourceJobID,
		job.Category,
		job.Description,
		job.EmploymentType,
	).Scan(&jobID)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}

	s.logger.Debug("Job upserted",
		slog.String("job_id", jobID),
		slog.String("apply_url", job.ApplyURL),
		slog.String("category", job.Category),
	)

	return nil
}
