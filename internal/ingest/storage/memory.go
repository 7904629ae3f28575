package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/alfa546/pak-job-portal/internal/ingest/domain"
)

// StoredJob is a posting held by MemoryStore together with its assigned id.
type StoredJob struct {
	JobID string
	domain.JobPosting
}

// MemoryStore keeps postings keyed on apply_url with the same overwrite
// semantics as Storage. Used for dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*StoredJob
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*StoredJob)}
}

func (m *MemoryStore) UpsertJob(_ context.Context, job *domain.JobPosting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.jobs[job.ApplyURL]; ok {
		existing.JobPosting = *job
		return nil
	}

	m.jobs[job.ApplyURL] = &StoredJob{JobID: uuid.NewString(), JobPosting: *job}
	return nil
}

// Len returns the number of distinct apply URLs stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Get returns a copy of the row for applyURL.
func (m *MemoryStore) Get(applyURL string) (StoredJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[applyURL]
	if !ok {
		return StoredJob{}, false
	}
	return *job, true
}
