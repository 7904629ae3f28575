package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alfa546/pak-job-portal/internal/api/domain"
	"github.com/alfa546/pak-job-portal/internal/api/dto"
	"github.com/alfa546/pak-job-portal/internal/api/model"
	"github.com/alfa546/pak-job-portal/internal/ingest"
	ingestdomain "github.com/alfa546/pak-job-portal/internal/ingest/domain"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
	"github.com/alfa546/pak-job-portal/internal/metrics"
)

// FetchJobs handles GET /api/fetch-jobs
// Runs the Adzuna keyword batch synchronously and returns its summary.
func (h *JobHandler) FetchJobs(c *gin.Context) {
	p, err := h.providers(provider.NameAdzuna)
	if err != nil {
		if errors.Is(err, ingestdomain.ErrMissingCredentials) {
			h.logger.Error("Adzuna credentials missing", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Adzuna API credentials are not configured",
				"message": "Please add ADZUNA_APP_ID and ADZUNA_APP_KEY to your environment variables. Get credentials from: https://developer.adzuna.com",
			})
			return
		}
		h.logger.Error("Failed to build provider", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}

	start := time.Now()
	summary := ingest.NewOrchestrator(p, h.sink, h.ingestOpts, h.logger).Run(c.Request.Context())
	metrics.ObserveRun(p.Name(), domain.RunStatusCompleted, time.Since(start))

	if summary.Saved > 0 && h.cache != nil {
		if err := h.cache.Invalidate(c.Request.Context()); err != nil {
			h.logger.Warn("Failed to invalidate company cache", slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusOK, dto.FetchJobsResponse{
		Message: "Jobs processed successfully",
		Summary: summary,
	})
}

// CreateIngestRun handles POST /api/v1/ingest-runs
// Records a PENDING run and enqueues it for the worker service. Repeating an
// idempotency key returns the original run.
func (h *JobHandler) CreateIngestRun(c *gin.Context) {
	var req dto.CreateIngestRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.Provider == "" {
		req.Provider = provider.NameAdzuna
	}
	if !provider.Valid(req.Provider) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("provider must be %q or %q", provider.NameAdzuna, provider.NameJSearch),
		})
		return
	}

	ctx := c.Request.Context()

	existing, err := h.store.GetIngestRunByIdempotencyKey(ctx, req.IdempotencyKey)
	if err == nil {
		c.JSON(http.StatusOK, toRunDTO(existing))
		return
	}
	if !errors.Is(err, domain.ErrRunNotFound) {
		h.logger.Error("Failed to check idempotency key", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create ingest run",
		})
		return
	}

	now := time.Now().UTC()
	run := model.IngestRun{
		RunID:          uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		Provider:       req.Provider,
		Status:         domain.RunStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.CreateIngestRun(ctx, &run); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			// lost a race with a concurrent request using the same key
			if existing, getErr := h.store.GetIngestRunByIdempotencyKey(ctx, req.IdempotencyKey); getErr == nil {
				c.JSON(http.StatusOK, toRunDTO(existing))
				return
			}
		}
		h.logger.Error("Failed to create ingest run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create ingest run",
		})
		return
	}

	body, err := json.Marshal(dto.IngestRunMessage{RunID: run.RunID})
	if err == nil {
		err = h.publisher.Publish(ctx, body, "application/json")
	}
	if err != nil {
		h.logger.Error("Failed to enqueue ingest run",
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()),
		)
		if markErr := h.store.MarkIngestRunFailed(ctx, run.RunID, "enqueue failed: "+err.Error()); markErr != nil {
			h.logger.Error("Failed to mark ingest run failed",
				slog.String("run_id", run.RunID),
				slog.String("error", markErr.Error()),
			)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Failed to enqueue ingest run",
			"run_id": run.RunID,
		})
		return
	}

	h.logger.Info("Ingest run enqueued",
		slog.String("run_id", run.RunID),
		slog.String("provider", run.Provider),
	)

	c.JSON(http.StatusAccepted, toRunDTO(&run))
}

// GetIngestRun handles GET /api/v1/ingest-runs/:run_id
func (h *JobHandler) GetIngestRun(c *gin.Context) {
	runID := c.Param("run_id")

	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.store.GetIngestRunByID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Ingest run not found",
			})
			return
		}
		h.logger.Error("Failed to get ingest run", slog.String("run_id", runID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get ingest run",
		})
		return
	}

	c.JSON(http.StatusOK, toRunDTO(run))
}

func toRunDTO(run *model.IngestRun) dto.IngestRunDTO {
	out := dto.IngestRunDTO{
		RunID:          run.RunID,
		IdempotencyKey: run.IdempotencyKey,
		Provider:       run.Provider,
		Status:         run.Status,
		CreatedAt:      run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      run.UpdatedAt.Format(time.RFC3339),
	}
	if run.WorkerID != nil {
		out.WorkerID = *run.WorkerID
	}
	if len(run.Summary) > 0 {
		out.Summary = json.RawMessage(run.Summary)
	}
	if run.ErrorMessage != nil {
		out.ErrorMessage = *run.ErrorMessage
	}
	if run.StartedAt != nil {
		out.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.CompletedAt != nil {
		out.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return out
}
