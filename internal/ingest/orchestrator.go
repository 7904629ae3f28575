// Package ingest runs the keyword batch: fetch a page per keyword, normalize
// each record's apply URL and upsert it, then report a Summary.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
	"github.com/alfa546/pak-job-portal/internal/ingest/urlnorm"
	"github.com/alfa546/pak-job-portal/internal/metrics"
)

// DefaultKeywordDelay is the pause between consecutive keyword fetches.
const DefaultKeywordDelay = time.Second

// Sink persists normalized postings keyed on apply URL.
type Sink interface {
	UpsertJob(ctx context.Context, job *domain.JobPosting) error
}

// Options configures an Orchestrator.
type Options struct {
	Keywords     []string
	KeywordDelay time.Duration
	CountryName  string
}

// Summary is the outcome of one batch run.
type Summary struct {
	KeywordsProcessed int      `json:"keywordsProcessed"`
	TotalKeywords     int      `json:"totalKeywords"`
	TotalFound        int      `json:"totalFound"`
	Saved             int      `json:"saved"`
	Skipped           int      `json:"skipped"`
	Errors            []string `json:"errors,omitempty"`
}

// Orchestrator drives one provider over the keyword list. A single run is
// strictly sequential.
type Orchestrator struct {
	provider provider.Provider
	sink     Sink
	opts     Options
	logger   *slog.Logger

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires a provider to a sink.
func NewOrchestrator(p provider.Provider, sink Sink, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.KeywordDelay < 0 {
		opts.KeywordDelay = 0
	}
	if opts.CountryName == "" {
		opts.CountryName = domain.DefaultCountry
	}

	return &Orchestrator{
		provider: p,
		sink:     sink,
		opts:     opts,
		logger: logger.With(
			slog.String("component", "ingest"),
			slog.String("provider", p.Name()),
		),
		sleep: sleepContext,
	}
}

// Run processes every keyword and returns the summary. Failures are recorded
// in Summary.Errors; Run itself never fails. Canceling ctx stops the batch at
// the next keyword boundary.
func (o *Orchestrator) Run(ctx context.Context) Summary {
	start := time.Now()
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	summary := Summary{TotalKeywords: len(o.opts.Keywords)}

	o.logger.Info("Starting ingestion batch",
		slog.Int("keywords", len(o.opts.Keywords)),
		slog.Duration("keyword_delay", o.opts.KeywordDelay),
	)

	for i, keyword := range o.opts.Keywords {
		if i > 0 {
			if err := o.sleep(ctx, o.opts.KeywordDelay); err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("Ingestion stopped before keyword %q: %v", keyword, err))
				o.logger.Warn("Ingestion batch canceled",
					slog.String("next_keyword", keyword),
					slog.Any("error", err),
				)
				break
			}
		}

		o.processKeyword(ctx, keyword, &summary)
	}

	o.logger.Info("Ingestion batch finished",
		slog.Int("keywords_processed", summary.KeywordsProcessed),
		slog.Int("total_keywords", summary.TotalKeywords),
		slog.Int("total_found", summary.TotalFound),
		slog.Int("saved", summary.Saved),
		slog.Int("skipped", summary.Skipped),
		slog.Int("errors", len(summary.Errors)),
		slog.Duration("duration", time.Since(start)),
	)

	return summary
}

func (o *Orchestrator) processKeyword(ctx context.Context, keyword string, summary *Summary) {
	jobs, err := o.provider.FetchPage(ctx, keyword, 1)
	if err != nil {
		metrics.ObserveFetch(o.provider.Name(), false)
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("Error fetching jobs for keyword %q: %v", keyword, err))
		o.logger.Error("Failed to fetch jobs",
			slog.String("keyword", keyword),
			slog.Any("error", err),
		)
		return
	}

	metrics.ObserveFetch(o.provider.Name(), true)
	summary.KeywordsProcessed++
	summary.TotalFound += len(jobs)

	o.logger.Info("Fetched jobs for keyword",
		slog.String("keyword", keyword),
		slog.Int("found", len(jobs)),
	)

	for i := range jobs {
		o.processRecord(ctx, keyword, jobs[i], summary)
	}
}

// processRecord accounts a single record as saved, skipped or errored. A
// panic is contained to the record.
func (o *Orchestrator) processRecord(ctx context.Context, keyword string, raw domain.RawJob, summary *Summary) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveRecord(o.provider.Name(), metrics.OutcomeError)
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("Error processing job %s: %v", raw.SourceJobID, r))
			o.logger.Error("Panic while processing job",
				slog.String("source_job_id", raw.SourceJobID),
				slog.Any("panic", r),
			)
		}
	}()

	applyURL := urlnorm.ValidateAndNormalize(&raw.ApplyURL)
	if applyURL == nil {
		summary.Skipped++
		metrics.ObserveRecord(o.provider.Name(), metrics.OutcomeSkipped)
		o.logger.Warn("Skipping job with invalid or relative URL",
			slog.String("title", raw.Title),
			slog.String("apply_url", raw.ApplyURL),
		)
		return
	}

	posting := raw.ToPosting(*applyURL, keyword, o.opts.CountryName)
	if err := o.sink.UpsertJob(ctx, posting); err != nil {
		metrics.ObserveRecord(o.provider.Name(), metrics.OutcomeError)
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("Error saving job %s: %v", raw.SourceJobID, err))
		o.logger.Error("Failed to save job",
			slog.String("source_job_id", raw.SourceJobID),
			slog.Any("error", err),
		)
		return
	}

	summary.Saved++
	metrics.ObserveRecord(o.provider.Name(), metrics.OutcomeSaved)
	o.logger.Debug("Saved job",
		slog.String("title", posting.Title),
		slog.String("company", posting.Company),
		slog.String("location", posting.Location),
		slog.String("category", keyword),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
