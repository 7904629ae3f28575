package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

// setupConsumer starts consuming with the configured prefetch and returns
// the delivery channel
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.broker.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// parseRunMessage decodes a delivery body into a RunMessage
func parseRunMessage(d amqp.Delivery) (*domain.RunMessage, error) {
	var msg domain.RunMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if _, err := uuid.Parse(msg.RunID); err != nil {
		return nil, fmt.Errorf("%w: run_id %q is not a UUID", domain.ErrInvalidMessage, msg.RunID)
	}
	msg.DeliveryTag = d.DeliveryTag
	return &msg, nil
}

// startMessageDispatcher hands deliveries to the worker pool until ctx is
// canceled or the delivery channel closes
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			msg, err := parseRunMessage(delivery)
			if err != nil {
				w.logger.Error("Dropping malformed message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				if nackErr := w.broker.Nack(delivery.DeliveryTag, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Run dispatched to worker pool",
					slog.String("run_id", msg.RunID),
					slog.Uint64("delivery_tag", msg.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching run")
				if nackErr := w.broker.Nack(delivery.DeliveryTag, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
