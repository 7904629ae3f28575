package domain

// Run is an ingest run claimed by this worker.
type Run struct {
	RunID    string
	Provider string
	Status   string
	WorkerID string
}

// RunMessage is an ingest run request taken off the queue.
type RunMessage struct {
	RunID       string `json:"run_id"`
	DeliveryTag uint64 `json:"-"`
}
