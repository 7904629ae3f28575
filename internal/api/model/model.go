package model

import (
	"time"

	"github.com/lib/pq"
)

// Job is a row of the jobs table as served by the listing API.
type Job struct {
	JobID          string    `db:"job_id"`
	Title          string    `db:"title"`
	Company        string    `db:"company"`
	Location       string    `db:"location"`
	ApplyURL       string    `db:"apply_url"`
	SourceJobID    string    `db:"source_job_id"`
	Category       string    `db:"category"`
	Description    *string   `db:"description"`
	EmploymentType *string   `db:"employment_type"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Company is the jobs table grouped by employer.
type Company struct {
	Name      string         `db:"name" json:"name"`
	JobCount  int            `db:"job_count" json:"job_count"`
	Locations pq.StringArray `db:"locations" json:"locations"`
}

// IngestRun is a row of the ingest_runs table.
type IngestRun struct {
	RunID          string     `db:"run_id"`
	IdempotencyKey string     `db:"idempotency_key"`
	Provider       string     `db:"provider"`
	Status         string     `db:"status"`
	WorkerID       *string    `db:"worker_id"`
	Summary        []byte     `db:"summary"`
	ErrorMessage   *string    `db:"error_message"`
	CreatedAt      time.Time  `db:"created_at"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}
