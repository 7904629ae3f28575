package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfa546/pak-job-portal/internal/config"
	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
)

// Adzuna queries the Adzuna search API for a single country.
type Adzuna struct {
	baseURL        string
	country        string
	appID          string
	appKey         string
	resultsPerPage int
	client         *http.Client
}

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	RedirectURL string     `json:"redirect_url"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string   `json:"display_name"`
		Area        []string `json:"area"`
	} `json:"location"`
}

// NewAdzuna returns an Adzuna client using the shared http client.
func NewAdzuna(cfg config.AdzunaConfig, client *http.Client) *Adzuna {
	perPage := cfg.ResultsPerPage
	if perPage <= 0 {
		perPage = 50
	}
	return &Adzuna{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		country:        cfg.Country,
		appID:          cfg.AppID,
		appKey:         cfg.AppKey,
		resultsPerPage: perPage,
		client:         client,
	}
}

func (a *Adzuna) Name() string { return NameAdzuna }

// FetchPage returns the results of one search page. An empty page is not an
// error.
func (a *Adzuna) FetchPage(ctx context.Context, keyword string, page int) ([]domain.RawJob, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%s", a.baseURL, url.PathEscape(a.country), pageParam(page))

	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("what", keyword)
	params.Set("results_per_page", strconv.Itoa(a.resultsPerPage))
	params.Set("content_type", "application/json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var resp adzunaResponse
	if err := getJSON(a.client, "Adzuna", req, &resp); err != nil {
		return nil, err
	}

	jobs := make([]domain.RawJob, 0, len(resp.Results))
	for _, r := range resp.Results {
		// display name wins; the area hierarchy is the fallback
		parts := r.Location.Area
		if r.Location.DisplayName != "" {
			parts = []string{r.Location.DisplayName}
		}

		jobs = append(jobs, domain.RawJob{
			SourceJobID:   string(r.ID),
			Title:         r.Title,
			Company:       r.Company.DisplayName,
			LocationParts: parts,
			ApplyURL:      r.RedirectURL,
			Description:   r.Description,
		})
	}

	return jobs, nil
}
