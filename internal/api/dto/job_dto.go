package dto

import (
	"encoding/json"

	"github.com/alfa546/pak-job-portal/internal/ingest"
)

type ListJobsRequest struct {
	Title    string `form:"title"`
	Location string `form:"location"`
	Category string `form:"category"`
	Company  string `form:"company"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID          string  `json:"job_id"`
	Title          string  `json:"title"`
	Company        string  `json:"company"`
	Location       string  `json:"location"`
	ApplyURL       string  `json:"apply_url"`
	SourceJobID    string  `json:"source_job_id,omitempty"`
	Category       string  `json:"category"`
	Description    *string `json:"description"`
	EmploymentType *string `json:"employment_type"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type ListCompaniesRequest struct {
	Limit int `form:"limit"`
}

type CompanyDTO struct {
	Name      string   `json:"name"`
	JobCount  int      `json:"job_count"`
	Locations []string `json:"locations"`
}

type ListCompaniesResponse struct {
	Companies []CompanyDTO `json:"companies"`
}

// FetchJobsResponse is the body of a successful synchronous ingestion.
type FetchJobsResponse struct {
	Message string `json:"message"`
	ingest.Summary
}

type CreateIngestRunRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	Provider       string `json:"provider"`
}

type IngestRunDTO struct {
	RunID          string          `json:"run_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Provider       string          `json:"provider"`
	Status         string          `json:"status"`
	WorkerID       string          `json:"worker_id,omitempty"`
	Summary        json.RawMessage `json:"summary,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      string          `json:"created_at"`
	StartedAt      string          `json:"started_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
	UpdatedAt      string          `json:"updated_at"`
}

// IngestRunMessage is the queue payload consumed by the worker service.
type IngestRunMessage struct {
	RunID string `json:"run_id"`
}
