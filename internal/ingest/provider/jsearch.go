package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfa546/pak-job-portal/internal/config"
	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
)

// JSearch queries the JSearch API through RapidAPI.
type JSearch struct {
	baseURL string
	host    string
	apiKey  string
	client  *http.Client
}

type jsearchResponse struct {
	Status string          `json:"status"`
	Data   []jsearchResult `json:"data"`
}

type jsearchResult struct {
	JobID          flexString `json:"job_id"`
	Title          string     `json:"job_title"`
	EmployerName   string     `json:"employer_name"`
	EmploymentType string     `json:"job_employment_type"`
	ApplyLink      string     `json:"job_apply_link"`
	Description    string     `json:"job_description"`
	City           string     `json:"job_city"`
	State          string     `json:"job_state"`
	Country        string     `json:"job_country"`
}

// NewJSearch returns a JSearch client using the shared http client.
func NewJSearch(cfg config.JSearchConfig, client *http.Client) *JSearch {
	return &JSearch{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		host:    cfg.Host,
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (j *JSearch) Name() string { return NameJSearch }

// FetchPage requests exactly one page for keyword.
func (j *JSearch) FetchPage(ctx context.Context, keyword string, page int) ([]domain.RawJob, error) {
	params := url.Values{}
	params.Set("query", keyword)
	params.Set("page", pageParam(page))
	params.Set("num_pages", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", j.apiKey)
	req.Header.Set("X-RapidAPI-Host", j.host)

	var resp jsearchResponse
	if err := getJSON(j.client, "JSearch", req, &resp); err != nil {
		return nil, err
	}

	jobs := make([]domain.RawJob, 0, len(resp.Data))
	for _, r := range resp.Data {
		jobs = append(jobs, domain.RawJob{
			SourceJobID:    string(r.JobID),
			Title:          r.Title,
			Company:        r.EmployerName,
			LocationParts:  []string{r.City, r.State, r.Country},
			ApplyURL:       r.ApplyLink,
			Description:    r.Description,
			EmploymentType: r.EmploymentType,
		})
	}

	return jobs, nil
}
