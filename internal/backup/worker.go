package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/workbook/internal/metrics"
	"github.com/kalambet/workbook/internal/storage"
)

// JobType is the queue type of snapshot export jobs.
const JobType = "snapshot_export"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Enqueuer accepts new jobs.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

// Queue accepts new jobs and reports on them.
type Queue interface {
	Enqueuer
	GetJob(id string) (storage.Job, error)
}

type exportPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Enqueue schedules a snapshot export and returns the job id.
func Enqueue(store Enqueuer, reason string) (string, error) {
	payload, err := json.Marshal(exportPayload{Reason: reason, RequestedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing export: %w", err)
	}
	return job.ID, nil
}

// Export takes a snapshot of src and writes it to sink. It returns the object name.
func Export(ctx context.Context, src Source, sink Sink, now time.Time) (string, error) {
	start := time.Now()
	defer func() { metrics.BackupDuration.Observe(time.Since(start).Seconds()) }()

	snap, err := Take(ctx, src, now)
	if err != nil {
		return "", err
	}
	data, err := snap.Encode()
	if err != nil {
		return "", err
	}
	name := FileName(now)
	if err := sink.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("writing to %s: %w", sink.Describe(), err)
	}
	return name, nil
}

// Worker processes snapshot_export jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	src    Source
	sink   Sink
	poll   time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, src Source, sink Sink, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		src:    src,
		sink:   sink,
		poll:   pollInterval,
		now:    time.Now,
		logger: slog.Default().With("component", "backup"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single snapshot_export job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		metrics.BackupJobs.WithLabelValues("failed").Inc()
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	metrics.BackupJobs.WithLabelValues("completed").Inc()
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload exportPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	name, err := Export(ctx, w.src, w.sink, w.now())
	if err != nil {
		return err
	}
	w.logger.Info("snapshot exported", "job_id", job.ID, "reason", payload.Reason, "name", name, "sink", w.sink.Describe())
	return nil
}
