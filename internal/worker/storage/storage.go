package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

// Storage handles all database operations for the worker
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

// CreateRun inserts a PENDING run unless one with the same idempotency key
// exists. created is false when the key was already used.
func (s *Storage) CreateRun(ctx context.Context, idempotencyKey, provider string) (runID string, created bool, err error) {
	query := `
		INSERT INTO ingest_runs (
			run_id, idempotency_key, provider, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NOW(), NOW()
		)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING run_id
	`

	err = s.db.QueryRowContext(ctx, query, uuid.NewString(), idempotencyKey, provider, domain.RunStatusPending).Scan(&runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to create ingest run: %w", err)
	}

	return runID, true, nil
}

// ClaimRun moves a PENDING run to RUNNING for workerID. Only one worker can
// win the claim.
func (s *Storage) ClaimRun(ctx context.Context, runID, workerID string) (*domain.Run, error) {
	query := `
		UPDATE ingest_runs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE run_id = $3
		  AND status = $4
		RETURNING run_id, provider
	`

	var run domain.Run
	err := s.db.QueryRowContext(ctx, query, domain.RunStatusRunning, workerID, runID, domain.RunStatusPending).Scan(
		&run.RunID,
		&run.Provider,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyUnclaimable(ctx, runID, workerID)
		}
		return nil, fmt.Errorf("failed to claim ingest run: %w", err)
	}

	run.Status = domain.RunStatusRunning
	run.WorkerID = workerID

	s.logger.Info("Ingest run claimed",
		slog.String("run_id", runID),
		slog.String("worker_id", workerID),
		slog.String("provider", run.Provider),
	)

	return &run, nil
}

// classifyUnclaimable tells a missing run apart from one claimed elsewhere.
func (s *Storage) classifyUnclaimable(ctx context.Context, runID, workerID string) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM ingest_runs WHERE run_id = $1)`, runID)
	if err != nil {
		return fmt.Errorf("failed to check ingest run: %w", err)
	}
	if !exists {
		return domain.ErrRunNotFound
	}

	s.logger.Warn("Failed to claim ingest run - already claimed",
		slog.String("run_id", runID),
		slog.String("worker_id", workerID),
	)
	return domain.ErrRunAlreadyClaimed
}

// FinishRun records the terminal status and, when present, the batch summary.
func (s *Storage) FinishRun(ctx context.Context, runID, status string, summary *ingest.Summary, errorMsg string) error {
	query := `
		UPDATE ingest_runs
		SET status = $1::text,
			summary = $2::jsonb,
			error_message = NULLIF($3, ''),
			completed_at = NOW(),
			updated_at = NOW()
		WHERE run_id = $4
	`

	// lib/pq sends []byte as bytea, so the JSON goes over the wire as text
	var summaryJSON sql.NullString
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		summaryJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query, status, summaryJSON, errorMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to update ingest run status: %w", err)
	}

	s.logger.Info("Ingest run status updated",
		slog.String("run_id", runID),
		slog.String("status", status),
	)

	return nil
}

// UpdateRunHeartbeat updates the last_heartbeat_at timestamp for a running run
func (s *Storage) UpdateRunHeartbeat(ctx context.Context, runID string) error {
	query := `
		UPDATE ingest_runs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE run_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, runID, domain.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update ingest run heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Ingest run heartbeat - no rows affected (run may not be running)",
			slog.String("run_id", runID),
		)
	}

	return nil
}
