package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/metrics"
	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

// processRun claims the run, executes the keyword batch and records the
// terminal status. A nil return means the message can be acked.
func (w *Worker) processRun(ctx context.Context, msg *domain.RunMessage) error {
	logger := w.logger.With(
		slog.String("run_id", msg.RunID),
		slog.String("worker_id", w.workerID),
	)

	run, err := w.store.ClaimRun(ctx, msg.RunID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrRunAlreadyClaimed) || errors.Is(err, domain.ErrRunNotFound) {
			logger.Warn("Skipping run", slog.String("reason", err.Error()))
			return err
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim run: %w", err))
	}

	// terminal writes must land even while the worker is shutting down
	finishCtx := context.WithoutCancel(ctx)

	p, err := w.providers(run.Provider)
	if err != nil {
		logger.Error("Provider unavailable",
			slog.String("provider", run.Provider),
			slog.String("error", err.Error()),
		)
		if finishErr := w.store.FinishRun(finishCtx, run.RunID, domain.RunStatusFailed, nil, err.Error()); finishErr != nil {
			logger.Error("Failed to mark run failed", slog.String("error", finishErr.Error()))
		}
		metrics.ObserveRun(run.Provider, domain.RunStatusFailed, 0)
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	runCtx, cancel := w.runContext(ctx)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendRunHeartbeat(runCtx, run.RunID, heartbeatDone)

	start := time.Now()
	summary := ingest.NewOrchestrator(p, w.sink, w.ingestOpts, logger).Run(runCtx)
	close(heartbeatDone)

	status, errMsg := domain.RunStatusCompleted, ""
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		status, errMsg = domain.RunStatusFailed, fmt.Sprintf("run timed out after %s", w.runTimeout)
	case ctx.Err() != nil:
		status, errMsg = domain.RunStatusFailed, "worker shutting down"
	}
	metrics.ObserveRun(run.Provider, status, time.Since(start))

	if err := w.store.FinishRun(finishCtx, run.RunID, status, &summary, errMsg); err != nil {
		logger.Error("Failed to record run result",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}

	logger.Info("Ingest run finished",
		slog.String("status", status),
		slog.Int("keywords_processed", summary.KeywordsProcessed),
		slog.Int("saved", summary.Saved),
		slog.Int("skipped", summary.Skipped),
		slog.Int("errors", len(summary.Errors)),
	)

	return nil
}

func (w *Worker) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.runTimeout > 0 {
		return context.WithTimeout(ctx, w.runTimeout)
	}
	return context.WithCancel(ctx)
}

// sendRunHeartbeat periodically updates the run's heartbeat timestamp
func (w *Worker) sendRunHeartbeat(ctx context.Context, runID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.UpdateRunHeartbeat(ctx, runID); err != nil {
				w.logger.Warn("Failed to update run heartbeat",
					slog.String("run_id", runID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
