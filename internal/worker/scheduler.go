package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

// RunCreator records a PENDING run under an idempotency key
type RunCreator interface {
	CreateRun(ctx context.Context, idempotencyKey, provider string) (runID string, created bool, err error)
	FinishRun(ctx context.Context, runID, status string, summary *ingest.Summary, errorMsg string) error
}

// Publisher enqueues run messages
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Scheduler enqueues an ingest run for one provider on a cron spec.
// Replicas firing on the same minute share an idempotency key, so only one
// run is created per tick.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	provider  string
	runs      RunCreator
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a Scheduler. spec accepts the standard five field
// syntax and descriptors such as "@every 6h".
func NewScheduler(spec, provider string, runs RunCreator, publisher Publisher, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		cron:      cron.New(),
		spec:      spec,
		provider:  provider,
		runs:      runs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start registers the tick and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Ingest scheduler started",
		slog.String("schedule", s.spec),
		slog.String("provider", s.provider),
	)
	return nil
}

// Stop halts the cron loop and waits for a running tick
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Ingest scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.enqueue(ctx, s.now()); err != nil {
		s.logger.Error("Scheduled ingest run failed", slog.String("error", err.Error()))
	}
}

// enqueue creates and publishes the run for the minute containing t. It
// returns an empty runID when another replica already took the tick.
func (s *Scheduler) enqueue(ctx context.Context, t time.Time) (string, error) {
	key := fmt.Sprintf("scheduled:%s:%s", s.provider, t.UTC().Truncate(time.Minute).Format(time.RFC3339))

	runID, created, err := s.runs.CreateRun(ctx, key, s.provider)
	if err != nil {
		return "", err
	}
	if !created {
		s.logger.Debug("Scheduled run already created", slog.String("idempotency_key", key))
		return "", nil
	}

	body, err := json.Marshal(domain.RunMessage{RunID: runID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal run message: %w", err)
	}
	if err := s.publisher.Publish(ctx, body, "application/json"); err != nil {
		if finishErr := s.runs.FinishRun(ctx, runID, domain.RunStatusFailed, nil, "enqueue failed: "+err.Error()); finishErr != nil {
			s.logger.Warn("Failed to mark unpublished run failed",
				slog.String("run_id", runID),
				slog.String("error", finishErr.Error()),
			)
		}
		return "", fmt.Errorf("failed to publish run %s: %w", runID, err)
	}

	s.logger.Info("Scheduled ingest run enqueued",
		slog.String("run_id", runID),
		slog.String("provider", s.provider),
	)
	return runID, nil
}
