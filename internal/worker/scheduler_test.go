package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

type fakeRunCreator struct {
	mu       sync.Mutex
	keys     map[string]string
	finished []finishCall
}

func (f *fakeRunCreator) CreateRun(_ context.Context, key, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]string)
	}
	if _, ok := f.keys[key]; ok {
		return "", false, nil
	}
	id := testRunID
	f.keys[key] = id
	return id, true, nil
}

func (f *fakeRunCreator) FinishRun(_ context.Context, runID, status string, summary *ingest.Summary, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, finishCall{RunID: runID, Status: status, Summary: summary, ErrMsg: errorMsg})
	return nil
}

type fakePublisher struct {
	err    error
	bodies []string
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, contentType string) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, string(body))
	return nil
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("every now and then", "adzuna", &fakeRunCreator{}, &fakePublisher{}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestScheduler_EnqueueDedupesPerMinute(t *testing.T) {
	runs := &fakeRunCreator{}
	pub := &fakePublisher{}
	s, err := NewScheduler("@every 6h", "adzuna", runs, pub, discardLogger())
	require.NoError(t, err)

	tick := time.Date(2026, 3, 1, 6, 0, 5, 0, time.UTC)

	runID, err := s.enqueue(context.Background(), tick)
	require.NoError(t, err)
	assert.Equal(t, testRunID, runID)
	require.Len(t, pub.bodies, 1)
	assert.JSONEq(t, `{"run_id":"`+testRunID+`"}`, pub.bodies[0])
	assert.Contains(t, runs.keys, "scheduled:adzuna:2026-03-01T06:00:00Z")

	// a second replica firing within the same minute
	runID, err = s.enqueue(context.Background(), tick.Add(30*time.Second))
	require.NoError(t, err)
	assert.Empty(t, runID)
	assert.Len(t, pub.bodies, 1)
}

func TestScheduler_PublishFailureMarksRunFailed(t *testing.T) {
	runs := &fakeRunCreator{}
	s, err := NewScheduler("0 */6 * * *", "jsearch", runs, &fakePublisher{err: errors.New("channel closed")}, discardLogger())
	require.NoError(t, err)

	_, err = s.enqueue(context.Background(), time.Now())
	require.Error(t, err)

	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.RunStatusFailed, runs.finished[0].Status)
	assert.Contains(t, runs.finished[0].ErrMsg, "channel closed")
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", "adzuna", &fakeRunCreator{}, &fakePublisher{}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
