package domain

import (
	"errors"
	"strings"
)

const (
	// DefaultCompany is stored when a provider omits the employer name.
	DefaultCompany = "Unknown Company"
	// DefaultCountry is stored when a provider supplies no location parts.
	DefaultCountry = "Pakistan"
)

var (
	// ErrMissingCredentials is returned when a provider is built without its API keys.
	ErrMissingCredentials = errors.New("provider credentials are not configured")

	// ErrUnknownProvider is returned for a provider name with no client.
	ErrUnknownProvider = errors.New("unknown provider")
)

// RawJob is one record as returned by a job-search provider, before URL
// normalization.
type RawJob struct {
	SourceJobID    string
	Title          string
	Company        string
	LocationParts  []string
	ApplyURL       string
	Description    string
	EmploymentType string
}

// JobPosting is the row written to the jobs table. ApplyURL is already
// normalized and is the dedup key.
type JobPosting struct {
	Title          string
	Company        string
	Location       string
	ApplyURL       string
	SourceJobID    string
	Category       string
	Description    *string
	EmploymentType *string
}

// ToPosting builds the persisted form of raw. applyURL must already be
// normalized; category is the search keyword that produced the record.
func (r RawJob) ToPosting(applyURL, category, country string) *JobPosting {
	if country == "" {
		country = DefaultCountry
	}

	company := strings.TrimSpace(r.Company)
	if company == "" {
		company = DefaultCompany
	}

	return &JobPosting{
		Title:          r.Title,
		Company:        company,
		Location:       joinLocation(r.LocationParts, country),
		ApplyURL:       applyURL,
		SourceJobID:    r.SourceJobID,
		Category:       category,
		Description:    optional(r.Description),
		EmploymentType: optional(r.EmploymentType),
	}
}

func joinLocation(parts []string, fallback string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, ", ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
