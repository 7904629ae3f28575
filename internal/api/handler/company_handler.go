package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alfa546/pak-job-portal/internal/api/dto"
	"github.com/alfa546/pak-job-portal/internal/api/model"
)

const (
	defaultCompanyLimit = 100
	maxCompanyLimit     = 500
)

// ListCompanies handles GET /api/v1/companies
// Cache failures are logged and fall through to the database.
func (h *JobHandler) ListCompanies(c *gin.Context) {
	var req dto.ListCompaniesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultCompanyLimit
	}
	if limit > maxCompanyLimit {
		limit = maxCompanyLimit
	}

	ctx := c.Request.Context()

	if h.cache != nil {
		companies, ok, err := h.cache.Get(ctx, limit)
		if err != nil {
			h.logger.Warn("Company cache read failed", slog.String("error", err.Error()))
		} else if ok {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, toCompaniesResponse(companies))
			return
		}
	}

	companies, err := h.store.ListCompanies(ctx, limit)
	if err != nil {
		h.logger.Error("Failed to list companies", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list companies",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, limit, companies); err != nil {
			h.logger.Warn("Company cache write failed", slog.String("error", err.Error()))
		}
		c.Header("X-Cache", "MISS")
	}

	c.JSON(http.StatusOK, toCompaniesResponse(companies))
}

func toCompaniesResponse(companies []model.Company) dto.ListCompaniesResponse {
	out := make([]dto.CompanyDTO, len(companies))
	for i, co := range companies {
		locations := []string(co.Locations)
		if locations == nil {
			locations = []string{}
		}
		out[i] = dto.CompanyDTO{
			Name:      co.Name,
			JobCount:  co.JobCount,
			Locations: locations,
		}
	}
	return dto.ListCompaniesResponse{Companies: out}
}
