package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

// DefaultHeartbeatInterval is used when Config.HeartbeatInterval is zero
const DefaultHeartbeatInterval = 30 * time.Second

// RunStore is the subset of the worker storage used to drive ingest runs
type RunStore interface {
	ClaimRun(ctx context.Context, runID, workerID string) (*domain.Run, error)
	FinishRun(ctx context.Context, runID, status string, summary *ingest.Summary, errorMsg string) error
	UpdateRunHeartbeat(ctx context.Context, runID string) error
}

// Broker delivers run messages and settles them
type Broker interface {
	Consume(consumerTag string, prefetchCount int) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// ProviderFactory builds the provider client named by a run
type ProviderFactory func(name string) (provider.Provider, error)

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             RunStore
	Broker            Broker
	Providers         ProviderFactory
	Sink              ingest.Sink
	IngestOpts        ingest.Options
	Concurrency       int
	PrefetchCount     int
	RunTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker consumes ingest run messages and executes them
type Worker struct {
	logger            *slog.Logger
	store             RunStore
	broker            Broker
	providers         ProviderFactory
	sink              ingest.Sink
	ingestOpts        ingest.Options
	workerID          string
	concurrency       int
	prefetchCount     int
	runTimeout        time.Duration
	heartbeatInterval time.Duration
	jobsChan          chan *domain.RunMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	return &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		broker:            cfg.Broker,
		providers:         cfg.Providers,
		sink:              cfg.Sink,
		ingestOpts:        cfg.IngestOpts,
		workerID:          newWorkerID(),
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		runTimeout:        cfg.RunTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *domain.RunMessage),
		stopChan:          make(chan struct{}),
	}
}

func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// ID returns the identifier recorded on claimed runs
func (w *Worker) ID() string {
	return w.workerID
}

// Start begins consuming run messages. It blocks until ctx is canceled or
// the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("run_timeout", w.runTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher exited", slog.String("worker_id", w.workerID))
	return nil
}

// Stop signals the pool to exit and waits for in-flight runs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
