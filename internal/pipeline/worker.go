package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/fieldmark/internal/boxes"
	"github.com/dgallion1/fieldmark/internal/extract"
	"github.com/dgallion1/fieldmark/internal/fields"
	"github.com/dgallion1/fieldmark/internal/session"
	"github.com/dgallion1/fieldmark/internal/snapshot"
)

// Worker processes one job at a time.
type Worker struct {
	provider extract.Provider
	saver    Saver
	log      *slog.Logger
	backoff  BackoffPolicy
}

func NewWorker(provider extract.Provider, saver Saver, log *slog.Logger, backoff BackoffPolicy) *Worker {
	return &Worker{
		provider: provider,
		saver:    saver,
		log:      log,
		backoff:  backoff,
	}
}

// Process runs a job to completion. A failed job leaves the session state as
// it was and records the error on the session for the user to see.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "session_id", job.SessionID, "kind", job.Kind)
	job.SetStatus(StatusRunning, string(job.Kind))

	var err error
	switch job.Kind {
	case session.WorkExtract:
		err = w.extract(ctx, job, log)
	case session.WorkMap:
		err = w.mapFields(ctx, job, log)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	if errors.Is(err, session.ErrStale) {
		log.Info("result discarded, document was replaced")
		job.SetStatus(StatusStale, "discarded")
		return
	}
	if err != nil {
		log.Error("job failed", "error", err)
		job.AddError(err.Error())
		job.session.Fail(job.ticket, err)
		job.SetStatus(StatusFailed, string(job.Kind))
		return
	}

	w.save(ctx, job, log)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) onRetry(job *Job, log *slog.Logger) func(int, error) {
	return func(attempt int, err error) {
		log.Warn("retryable model error", "attempt", attempt, "error", err)
		job.SetStatus(StatusRetrying, fmt.Sprintf("retry %d", attempt+1))
	}
}

func (w *Worker) extract(ctx context.Context, job *Job, log *slog.Logger) error {
	doc, info := job.session.Document()
	in := extract.Document{Name: doc.Name, Data: doc.Data, PageText: info.Text}

	res, err := withRetry(ctx, w.backoff, w.onRetry(job, log), func(ctx context.Context) (boxes.Result, error) {
		job.IncrAttempts()
		return w.provider.ExtractBoxes(ctx, in)
	})
	if err != nil {
		return fmt.Errorf("extract boxes: %w", err)
	}
	if err := job.session.FinishExtraction(job.ticket, res); err != nil {
		return err
	}
	v := job.session.View()
	job.SetResult(len(v.Boxes), len(v.Fields), 0, len(v.Unmapped))
	log.Info("extraction complete", "boxes", len(v.Boxes), "fields", len(v.Fields))
	return nil
}

func (w *Worker) mapFields(ctx context.Context, job *Job, log *slog.Logger) error {
	names, refs := job.session.MappingRequest()

	res, err := withRetry(ctx, w.backoff, w.onRetry(job, log), func(ctx context.Context) (fields.MappingResult, error) {
		job.IncrAttempts()
		return w.provider.MapFields(ctx, names, refs)
	})
	if err != nil {
		return fmt.Errorf("map fields: %w", err)
	}
	out, err := job.session.FinishMapping(job.ticket, res)
	if err != nil {
		return err
	}
	job.SetResult(0, len(out.Fields), out.Synthesized, len(out.Unmapped))
	log.Info("mapping complete", "fields", len(out.Fields), "synthesized", out.Synthesized)
	return nil
}

func (w *Worker) save(ctx context.Context, job *Job, log *slog.Logger) {
	if w.saver == nil {
		return
	}
	rec := snapshot.Capture(job.SessionID, job.session.State(), time.Now())
	if err := w.saver.Save(ctx, rec); err != nil {
		log.Warn("autosave failed", "error", err)
	}
}
