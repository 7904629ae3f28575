package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alfa546/pak-job-portal/internal/api/handler"
	"github.com/alfa546/pak-job-portal/internal/metrics"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(metrics.Middleware())
	r.Use(CORSMiddleware())

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "pak-jobs-api"
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	jobHandler := handler.NewJobHandler(deps)

	// GET /api/fetch-jobs - synchronous Adzuna ingestion
	r.GET("/api/fetch-jobs", jobHandler.FetchJobs)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		v1.GET("/companies", jobHandler.ListCompanies)

		runs := v1.Group("/ingest-runs")
		{
			runs.POST("", jobHandler.CreateIngestRun)
			runs.GET("/:run_id", jobHandler.GetIngestRun)
		}
	}

	return r
}
