package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/fieldmark/internal/config"
	"github.com/dgallion1/fieldmark/internal/extract"
	"github.com/dgallion1/fieldmark/internal/session"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("pipeline is stopped")
)

// Saver persists a session snapshot after a job changed it.
type Saver interface {
	Save(ctx context.Context, rec snapshot.Record) error
}

// Orchestrator runs extraction and mapping jobs on a worker pool.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	provider extract.Provider
	saver    Saver
	log      *slog.Logger
	cfg      config.Config
	backoff  BackoffPolicy

	mu      sync.Mutex
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. saver may be nil.
func NewOrchestrator(cfg config.Config, provider extract.Provider, saver Saver, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		provider: provider,
		saver:    saver,
		log:      log,
		cfg:      cfg,
		backoff:  BackoffPolicy{Base: cfg.RetryBaseDelay, Max: cfg.RetryMaxDelay},
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.provider, o.saver, o.log, o.backoff)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Queued jobs that no worker
// picked up fail with ErrStopped.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	// Jobs still buffered never ran; release their sessions.
	for job := range o.queue {
		job.AddError(ErrStopped.Error())
		job.SetStatus(StatusFailed, "stopped")
		if job.session != nil {
			job.session.Fail(job.ticket, ErrStopped)
		}
		o.log.Warn("job dropped at shutdown", "job_id", job.ID, "session_id", job.SessionID)
	}
}

// Enqueue starts work of the given kind on s. It fails fast with
// extract.ErrMissingCredential, session.ErrBusy or ErrQueueFull; in every
// failure case the session is left idle.
func (o *Orchestrator) Enqueue(s *session.Session, kind session.WorkKind) (*Job, error) {
	if err := o.provider.Ready(); err != nil {
		return nil, err
	}
	ticket, err := s.BeginWork(kind)
	if err != nil {
		return nil, err
	}
	doc, _ := s.Document()
	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		SessionID:   s.ID,
		Kind:        kind,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(doc.Data),
		CreatedAt:   now,
		UpdatedAt:   now,
		ticket:      ticket,
		session:     s,
	}
	if err := o.Submit(job); err != nil {
		s.Fail(ticket, err)
		return nil, err
	}
	o.log.Info("job queued", "job_id", job.ID, "session_id", s.ID, "kind", kind)
	return job, nil
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Provider returns the model provider in use.
func (o *Orchestrator) Provider() extract.Provider {
	return o.provider
}
