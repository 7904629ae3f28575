package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfa546/pak-job-portal/internal/ingest"
	ingestdomain "github.com/alfa546/pak-job-portal/internal/ingest/domain"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
	"github.com/alfa546/pak-job-portal/internal/ingest/storage"
	"github.com/alfa546/pak-job-portal/internal/worker/domain"
)

const testRunID = "6f1c1b8e-3b9a-4c59-9d0e-0a4a3c2b1d00"

type finishCall struct {
	RunID   string
	Status  string
	Summary *ingest.Summary
	ErrMsg  string
}

type fakeRunStore struct {
	mu         sync.Mutex
	claimErr   error
	provider   string
	claims     []string
	finished   []finishCall
	heartbeats int
}

func (f *fakeRunStore) ClaimRun(_ context.Context, runID, workerID string) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims = append(f.claims, runID)
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return &domain.Run{RunID: runID, Provider: f.provider, Status: domain.RunStatusRunning, WorkerID: workerID}, nil
}

func (f *fakeRunStore) FinishRun(_ context.Context, runID, status string, summary *ingest.Summary, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, finishCall{RunID: runID, Status: status, Summary: summary, ErrMsg: errorMsg})
	return nil
}

func (f *fakeRunStore) UpdateRunHeartbeat(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeRunStore) finishedSnapshot() []finishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]finishCall(nil), f.finished...)
}

type stubProvider struct {
	jobs  []ingestdomain.RawJob
	block bool
}

func (s *stubProvider) Name() string { return provider.NameJSearch }

func (s *stubProvider) FetchPage(ctx context.Context, _ string, _ int) ([]ingestdomain.RawJob, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.jobs, nil
}

type fakeBroker struct {
	deliveries chan amqp.Delivery

	mu     sync.Mutex
	acked  []uint64
	nacked map[uint64]bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		deliveries: make(chan amqp.Delivery, 4),
		nacked:     make(map[uint64]bool),
	}
}

func (b *fakeBroker) Consume(string, int) (<-chan amqp.Delivery, error) {
	return b.deliveries, nil
}

func (b *fakeBroker) Ack(tag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked = append(b.acked, tag)
	return nil
}

func (b *fakeBroker) Nack(tag uint64, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nacked[tag] = requeue
	return nil
}

func (b *fakeBroker) settled() (acked []uint64, nacked map[uint64]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := make(map[uint64]bool, len(b.nacked))
	for k, v := range b.nacked {
		n[k] = v
	}
	return append([]uint64(nil), b.acked...), n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(store *fakeRunStore, broker Broker, p provider.Provider, providerErr error) (*Worker, *storage.MemoryStore) {
	sink := storage.NewMemoryStore()
	w := NewWorker(&Config{
		Logger: discardLogger(),
		Store:  store,
		Broker: broker,
		Providers: func(string) (provider.Provider, error) {
			if providerErr != nil {
				return nil, providerErr
			}
			return p, nil
		},
		Sink:              sink,
		IngestOpts:        ingest.Options{Keywords: []string{"Nursing"}, CountryName: "Pakistan"},
		Concurrency:       2,
		RunTimeout:        time.Minute,
		HeartbeatInterval: time.Hour,
	})
	return w, sink
}

func TestShouldRequeueRun(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"already claimed", domain.ErrRunAlreadyClaimed, false},
		{"not found", domain.ErrRunNotFound, false},
		{"provider unavailable", domain.ErrProviderUnavailable, false},
		{"invalid message", domain.ErrInvalidMessage, false},
		{"retryable", domain.NewRetryableError(errors.New("connection reset")), true},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeueRun(tt.err))
		})
	}
}

func TestParseRunMessage(t *testing.T) {
	msg, err := parseRunMessage(amqp.Delivery{DeliveryTag: 7, Body: []byte(`{"run_id":"` + testRunID + `"}`)})
	require.NoError(t, err)
	assert.Equal(t, testRunID, msg.RunID)
	assert.Equal(t, uint64(7), msg.DeliveryTag)

	_, err = parseRunMessage(amqp.Delivery{Body: []byte(`not json`)})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = parseRunMessage(amqp.Delivery{Body: []byte(`{"run_id":"abc"}`)})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestProcessRun_Completed(t *testing.T) {
	store := &fakeRunStore{provider: provider.NameJSearch}
	p := &stubProvider{jobs: []ingestdomain.RawJob{
		{SourceJobID: "j1", Title: "Staff Nurse", Company: "Shifa", ApplyURL: "jobs.pk/nurse"},
		{SourceJobID: "j2", Title: "Ward Nurse", ApplyURL: "/relative"},
	}}
	w, sink := newTestWorker(store, newFakeBroker(), p, nil)

	err := w.processRun(context.Background(), &domain.RunMessage{RunID: testRunID})
	require.NoError(t, err)

	finished := store.finishedSnapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, domain.RunStatusCompleted, finished[0].Status)
	assert.Empty(t, finished[0].ErrMsg)
	require.NotNil(t, finished[0].Summary)
	assert.Equal(t, 1, finished[0].Summary.Saved)
	assert.Equal(t, 1, finished[0].Summary.Skipped)
	assert.Equal(t, 2, finished[0].Summary.TotalFound)

	stored, ok := sink.Get("https://jobs.pk/nurse")
	require.True(t, ok)
	assert.Equal(t, "Nursing", stored.Category)
}

func TestProcessRun_ClaimErrors(t *testing.T) {
	t.Run("already claimed is not retried", func(t *testing.T) {
		store := &fakeRunStore{claimErr: domain.ErrRunAlreadyClaimed}
		w, _ := newTestWorker(store, newFakeBroker(), &stubProvider{}, nil)

		err := w.processRun(context.Background(), &domain.RunMessage{RunID: testRunID})
		assert.ErrorIs(t, err, domain.ErrRunAlreadyClaimed)
		assert.False(t, shouldRequeueRun(err))
		assert.Empty(t, store.finishedSnapshot())
	})

	t.Run("database error is retried", func(t *testing.T) {
		store := &fakeRunStore{claimErr: errors.New("connection refused")}
		w, _ := newTestWorker(store, newFakeBroker(), &stubProvider{}, nil)

		err := w.processRun(context.Background(), &domain.RunMessage{RunID: testRunID})
		require.Error(t, err)
		assert.True(t, shouldRequeueRun(err))
	})
}

func TestProcessRun_ProviderUnavailable(t *testing.T) {
	store := &fakeRunStore{provider: provider.NameAdzuna}
	w, _ := newTestWorker(store, newFakeBroker(), nil, ingestdomain.ErrMissingCredentials)

	err := w.processRun(context.Background(), &domain.RunMessage{RunID: testRunID})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.False(t, shouldRequeueRun(err))

	finished := store.finishedSnapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, domain.RunStatusFailed, finished[0].Status)
	assert.Nil(t, finished[0].Summary)
	assert.Contains(t, finished[0].ErrMsg, "credentials")
}

func TestProcessRun_Timeout(t *testing.T) {
	store := &fakeRunStore{provider: provider.NameJSearch}
	w, _ := newTestWorker(store, newFakeBroker(), &stubProvider{block: true}, nil)
	w.runTimeout = 20 * time.Millisecond

	err := w.processRun(context.Background(), &domain.RunMessage{RunID: testRunID})
	require.NoError(t, err)

	finished := store.finishedSnapshot()
	require.Len(t, finished, 1)
	assert.Equal(t, domain.RunStatusFailed, finished[0].Status)
	assert.Contains(t, finished[0].ErrMsg, "timed out")
	require.NotNil(t, finished[0].Summary)
	assert.Equal(t, 0, finished[0].Summary.KeywordsProcessed)
	assert.Len(t, finished[0].Summary.Errors, 1)
}

func TestWorker_StartSettlesDeliveries(t *testing.T) {
	store := &fakeRunStore{provider: provider.NameJSearch}
	broker := newFakeBroker()
	w, _ := newTestWorker(store, broker, &stubProvider{}, nil)

	broker.deliveries <- amqp.Delivery{DeliveryTag: 1, Body: []byte(`{"run_id":"nope"}`)}
	broker.deliveries <- amqp.Delivery{DeliveryTag: 2, Body: []byte(`{"run_id":"` + testRunID + `"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	assert.Eventually(t, func() bool {
		acked, nacked := broker.settled()
		return len(acked) == 1 && len(nacked) == 1
	}, 2*time.Second, 10*time.Millisecond)

	acked, nacked := broker.settled()
	assert.Equal(t, []uint64{2}, acked)
	requeue, ok := nacked[1]
	assert.True(t, ok)
	assert.False(t, requeue)

	cancel()
	require.NoError(t, <-done)
	w.Stop()
}

func TestWorker_StartClosedChannel(t *testing.T) {
	broker := newFakeBroker()
	close(broker.deliveries)
	w, _ := newTestWorker(&fakeRunStore{}, broker, &stubProvider{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(&Config{Logger: discardLogger()})
	assert.Equal(t, 1, w.concurrency)
	assert.Equal(t, 1, w.prefetchCount)
	assert.Equal(t, DefaultHeartbeatInterval, w.heartbeatInterval)
	assert.NotEmpty(t, w.ID())
}
