package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/fieldmark/internal/session"
)

// JobStatus represents the state of an extraction or mapping job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusRetrying  JobStatus = "retrying"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	// StatusStale means the job finished after its session loaded another
	// document; the result was discarded.
	StatusStale JobStatus = "stale"
)

// Job tracks one model call made on behalf of a session.
type Job struct {
	mu sync.Mutex

	ID        string           `json:"job_id"`
	SessionID string           `json:"session_id"`
	Kind      session.WorkKind `json:"kind"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Attempts int       `json:"attempts"`
	Result   Result    `json:"result"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	ticket  session.Ticket
	session *session.Session
	errors  []string
}

// Result summarizes what a finished job changed.
type Result struct {
	Boxes       int      `json:"boxes"`
	Fields      int      `json:"fields"`
	Synthesized int      `json:"synthesized"`
	Unmapped    int      `json:"unmapped"`
	Errors      []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Result.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrAttempts counts one call to the model service.
func (j *Job) IncrAttempts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Attempts++
	j.UpdatedAt = time.Now()
}

// SetResult records the counts of a finished job.
func (j *Job) SetResult(boxes, fields, synthesized, unmapped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result.Boxes = boxes
	j.Result.Fields = fields
	j.Result.Synthesized = synthesized
	j.Result.Unmapped = unmapped
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string           `json:"job_id"`
	SessionID string           `json:"session_id"`
	Kind      session.WorkKind `json:"kind"`
	Status    JobStatus        `json:"status"`
	Phase     string           `json:"phase"`
	Attempts  int              `json:"attempts"`
	Result    Result           `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Done reports whether the job reached a final status.
func (s JobSnapshot) Done() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusStale:
		return true
	}
	return false
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	res := j.Result
	res.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		SessionID: j.SessionID,
		Kind:      j.Kind,
		Status:    j.Status,
		Phase:     j.Phase,
		Attempts:  j.Attempts,
		Result:    res,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
