// Package provider implements the job-search API clients used by ingestion.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfa546/pak-job-portal/internal/config"
	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
)

// Provider names accepted in configuration, CLI flags and ingest runs.
const (
	NameAdzuna  = "adzuna"
	NameJSearch = "jsearch"
)

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

// Provider fetches one page of results for a keyword.
type Provider interface {
	Name() string
	FetchPage(ctx context.Context, keyword string, page int) ([]domain.RawJob, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %s - %s", e.Provider, e.Status, e.Body)
}

// Valid reports whether name identifies a known provider.
func Valid(name string) bool {
	return name == NameAdzuna || name == NameJSearch
}

// New builds the named provider from configuration. Missing credentials are
// reported as domain.ErrMissingCredentials.
func New(name string, cfg config.ProvidersConfig, client *http.Client) (Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	switch name {
	case NameAdzuna:
		if !cfg.Adzuna.HasCredentials() {
			return nil, fmt.Errorf("adzuna: ADZUNA_APP_ID and ADZUNA_APP_KEY are required: %w", domain.ErrMissingCredentials)
		}
		return NewAdzuna(cfg.Adzuna, client), nil
	case NameJSearch:
		if !cfg.JSearch.HasCredentials() {
			return nil, fmt.Errorf("jsearch: RAPIDAPI_KEY is required: %w", domain.ErrMissingCredentials)
		}
		return NewJSearch(cfg.JSearch, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
}

// getJSON performs req and decodes a 2xx body into out.
func getJSON(client *http.Client, provider string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

// flexString accepts a JSON string or number. Provider ids appear as both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func pageParam(page int) string {
	if page < 1 {
		page = 1
	}
	return strconv.Itoa(page)
}
