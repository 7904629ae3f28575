package handler

import (
	"context"
	"log/slog"

	"github.com/alfa546/pak-job-portal/internal/api/model"
	"github.com/alfa546/pak-job-portal/internal/api/storage"
	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
)

// Store is the persistence the handlers read from and write to.
type Store interface {
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListCompanies(ctx context.Context, limit int) ([]model.Company, error)
	CreateIngestRun(ctx context.Context, run *model.IngestRun) error
	GetIngestRunByID(ctx context.Context, runID string) (*model.IngestRun, error)
	GetIngestRunByIdempotencyKey(ctx context.Context, key string) (*model.IngestRun, error)
	MarkIngestRunFailed(ctx context.Context, runID, reason string) error
}

// Publisher enqueues ingest run requests.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// CompanyCache is the optional company directory cache.
type CompanyCache interface {
	Get(ctx context.Context, limit int) ([]model.Company, bool, error)
	Set(ctx context.Context, limit int, companies []model.Company) error
	Invalidate(ctx context.Context) error
}

// ProviderFactory builds a named provider from the current configuration.
type ProviderFactory func(name string) (provider.Provider, error)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Store       Store
	Publisher   Publisher
	Cache       CompanyCache // nil disables caching
	Providers   ProviderFactory
	Sink        ingest.Sink
	IngestOpts  ingest.Options
	ServiceName string
}

// JobHandler handles job board HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	store      Store
	publisher  Publisher
	cache      CompanyCache
	providers  ProviderFactory
	sink       ingest.Sink
	ingestOpts ingest.Options
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		publisher:  deps.Publisher,
		cache:      deps.Cache,
		providers:  deps.Providers,
		sink:       deps.Sink,
		ingestOpts: deps.IngestOpts,
	}
}
