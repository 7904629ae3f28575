package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/alfa546/pak-job-portal/internal/api/domain"
	"github.com/alfa546/pak-job-portal/internal/api/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

const jobColumns = `
	job_id, title, company, location, apply_url,
	source_job_id, category, description, employment_type,
	created_at, updated_at
`

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	Title    string
	Location string
	Category string
	Company  string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 rows, newest first. The extra row tells
// the caller whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Title != "" {
		query += fmt.Sprintf(` AND title ILIKE $%d ESCAPE '\'`, argIdx)
		args = append(args, containsPattern(filter.Title))
		argIdx++
	}

	if filter.Location != "" {
		query += fmt.Sprintf(` AND location ILIKE $%d ESCAPE '\'`, argIdx)
		args = append(args, containsPattern(filter.Location))
		argIdx++
	}

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
		argIdx++
	}

	if filter.Company != "" {
		query += fmt.Sprintf(" AND company = $%d", argIdx)
		args = append(args, filter.Company)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// ListCompanies aggregates jobs by employer, busiest first.
func (s *Storage) ListCompanies(ctx context.Context, limit int) ([]model.Company, error) {
	query := `
		SELECT
			company AS name,
			COUNT(*) AS job_count,
			ARRAY_AGG(DISTINCT location ORDER BY location) AS locations
		FROM jobs
		GROUP BY company
		ORDER BY job_count DESC, name ASC
		LIMIT $1
	`

	var companies []model.Company
	if err := s.db.SelectContext(ctx, &companies, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	return companies, nil
}

const runColumns = `
	run_id, idempotency_key, provider, status, worker_id,
	summary, error_message, created_at, started_at, completed_at, updated_at
`

// CreateIngestRun inserts a PENDING run. A reused idempotency key yields
// domain.ErrDuplicateIdempotencyKey.
func (s *Storage) CreateIngestRun(ctx context.Context, run *model.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (
			run_id, idempotency_key, provider, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		run.RunID,
		run.IdempotencyKey,
		run.Provider,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create ingest run: %w", err)
	}

	return nil
}

func (s *Storage) GetIngestRunByID(ctx context.Context, runID string) (*model.IngestRun, error) {
	return s.getIngestRun(ctx, "run_id", runID)
}

func (s *Storage) GetIngestRunByIdempotencyKey(ctx context.Context, key string) (*model.IngestRun, error) {
	return s.getIngestRun(ctx, "idempotency_key", key)
}

func (s *Storage) getIngestRun(ctx context.Context, column, value string) (*model.IngestRun, error) {
	var run model.IngestRun
	query := `SELECT ` + runColumns + ` FROM ingest_runs WHERE ` + column + ` = $1`

	err := s.db.GetContext(ctx, &run, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get ingest run: %w", err)
	}

	return &run, nil
}

// MarkIngestRunFailed fails a run that never reached a worker.
func (s *Storage) MarkIngestRunFailed(ctx context.Context, runID, reason string) error {
	query := `
		UPDATE ingest_runs
		SET status = $1,
			error_message = $2,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE run_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.RunStatusFailed, reason, runID, domain.RunStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark ingest run failed: %w", err)
	}

	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE substring pattern with wildcards in s
// matched literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
