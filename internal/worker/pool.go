package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.jobsChan:
			w.settle(workerName, msg, w.processRun(ctx, msg))
		}
	}
}

// settle acks or nacks the delivery for msg based on the processing result
func (w *Worker) settle(workerName string, msg *domain.RunMessage, err error) {
	if err == nil {
		if ackErr := w.broker.Ack(msg.DeliveryTag); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("run_id", msg.RunID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeueRun(err)
	w.logger.Error("Run processing failed",
		slog.String("worker_name", workerName),
		slog.String("run_id", msg.RunID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if nackErr := w.broker.Nack(msg.DeliveryTag, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("run_id", msg.RunID),
			slog.String("error", nackErr.Error()),
		)
	}
}

// shouldRequeueRun reports whether a failed message is worth redelivering
func shouldRequeueRun(err error) bool {
	switch {
	case errors.Is(err, domain.ErrRunAlreadyClaimed),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrInvalidMessage):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
