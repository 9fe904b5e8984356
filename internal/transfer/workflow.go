package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/samijaber1/session-relay/internal/session"
	"github.com/samijaber1/session-relay/internal/storage"
	"go.uber.org/zap"
)

// DefaultPollInterval is the fixed wait before each readiness check
const DefaultPollInterval = 5 * time.Second

// Source is the remote dataset provider
type Source interface {
	// CheckReady never fails; any problem reads as not ready
	CheckReady(ctx context.Context) bool
	FetchDataset(ctx context.Context) ([]session.Record, error)
}

// Writer receives the transferred dataset
type Writer interface {
	ReplaceAll(ctx context.Context, records []session.Record) error
}

// Workflow polls the source until it is ready, performs a single transfer
// into the writer and records the outcome in its status cell
type Workflow struct {
	source       Source
	writer       Writer
	pollInterval time.Duration
	logger       *zap.Logger
	status       StatusCell
	done         chan struct{}
	doneOnce     sync.Once

	mu    sync.RWMutex
	audit storage.TransferStorage
}

// NewWorkflow creates a workflow in the waiting state
func NewWorkflow(source Source, writer Writer, pollInterval time.Duration, logger *zap.Logger) *Workflow {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Workflow{
		source:       source,
		writer:       writer,
		pollInterval: pollInterval,
		logger:       logger.Named("transfer"),
		done:         make(chan struct{}),
	}
}

// SetTransferStorage sets the transfer audit backend (optional)
func (w *Workflow) SetTransferStorage(audit storage.TransferStorage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.audit = audit
}

// Status returns the current workflow status
func (w *Workflow) Status() Status {
	return w.status.Load()
}

// Done is closed once the workflow reaches a terminal status
func (w *Workflow) Done() <-chan struct{} {
	return w.done
}

// Run polls and transfers until a terminal status is reached or ctx is
// cancelled. Cancellation leaves the status unchanged and returns ctx.Err().
// A panic inside the loop is turned into StatusError.
func (w *Workflow) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("transfer workflow panicked", zap.Any("panic", r), zap.Stack("stack"))
			w.finish(ctx, storage.TransferRecord{
				ID:         uuid.NewString(),
				Outcome:    storage.TransferError,
				Error:      fmt.Sprintf("panic: %v", r),
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
			})
			err = nil
		}
	}()

	if w.status.Load().Terminal() {
		return nil
	}

	w.logger.Info("starting up", zap.Duration("poll_interval", w.pollInterval))

	pacer := backoff.WithContext(backoff.NewConstantBackOff(w.pollInterval), ctx)
	for attempt := 1; ; attempt++ {
		wait := pacer.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		w.logger.Info("checking loading service status", zap.Int("attempt", attempt))
		if !w.source.CheckReady(ctx) {
			w.logger.Info("loading service is not ready, waiting")
			continue
		}

		w.logger.Info("loading service is ready, transferring data")
		if w.transferOnce(ctx) {
			return nil
		}
	}
}

// transferOnce performs a single transfer attempt. It returns true when a
// terminal status was reached.
func (w *Workflow) transferOnce(ctx context.Context) bool {
	rec := storage.TransferRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := w.logger.With(zap.String("transfer_id", rec.ID))

	records, err := w.source.FetchDataset(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("error during data transfer", zap.Error(err))
		rec.Outcome = storage.TransferError
		rec.Error = err.Error()
		w.finish(ctx, rec)
		return true
	}

	if len(records) == 0 {
		logger.Info("no data returned from loading service, resuming polling")
		return false
	}

	if err := w.writer.ReplaceAll(ctx, records); err != nil {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("failed to store transferred data", zap.Error(err))
		rec.Outcome = storage.TransferError
		rec.Error = err.Error()
		w.finish(ctx, rec)
		return true
	}

	rec.Outcome = storage.TransferReady
	rec.Rows = len(records)
	logger.Info("transferred rows to the local database", zap.Int("rows", len(records)))
	w.finish(ctx, rec)
	return true
}

// finish applies the terminal status and records the attempt
func (w *Workflow) finish(ctx context.Context, rec storage.TransferRecord) {
	status := StatusError
	if rec.Outcome == storage.TransferReady {
		status = StatusReady
	}

	if !w.status.Finish(status) {
		return
	}
	w.doneOnce.Do(func() { close(w.done) })

	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	w.mu.RLock()
	audit := w.audit
	w.mu.RUnlock()

	if audit != nil {
		if err := audit.RecordTransfer(context.WithoutCancel(ctx), rec); err != nil {
			w.logger.Warn("failed to record transfer", zap.String("transfer_id", rec.ID), zap.Error(err))
		}
	}

	w.logger.Info("transfer workflow finished", zap.String("status", status.String()))
}
