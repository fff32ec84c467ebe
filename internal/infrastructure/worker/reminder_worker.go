package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/application/workflow"
	"github.com/garyjia/cost-approval/internal/domain/event"
	domainwf "github.com/garyjia/cost-approval/internal/domain/workflow"
)

// ReminderSource lists records whose reminder is due and records delivery
type ReminderSource interface {
	ListOpen(ctx context.Context, filter workflow.ListFilter, actorID int64) ([]*workflow.ApprovalView, error)
	MarkReminded(ctx context.Context, approvalID int64) error
}

// ReminderConfig tunes the reminder worker
type ReminderConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// ReminderWorker periodically publishes reminder events for approval records
// inside their reminder window and marks them reminded once delivered
type ReminderWorker struct {
	source     ReminderSource
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	pollInterval time.Duration
	batchSize    int

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(source ReminderSource, d dispatcher.Dispatcher, cfg ReminderConfig, logger *zap.Logger) *ReminderWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ReminderWorker{
		source:       source,
		dispatcher:   d,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
	}
}

// Name returns the worker name for identification
func (w *ReminderWorker) Name() string {
	return "ReminderWorker"
}

// Start launches the poll loop
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("reminder worker is already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ReminderWorker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("batch_size", w.batchSize))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the poll loop and waits for the current poll to finish
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("ReminderWorker stopped")
	return nil
}

func (w *ReminderWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *ReminderWorker) poll(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Reminder poll failed", zap.Error(err))
	}
}

// RunOnce sends reminders for at most one batch of due records and returns
// how many were marked reminded
func (w *ReminderWorker) RunOnce(ctx context.Context) (int, error) {
	due, err := w.source.ListOpen(ctx, workflow.FilterNeedsReminder, 0)
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}
	if len(due) > w.batchSize {
		due = due[:w.batchSize]
	}

	marked := 0
	for _, a := range due {
		if ctx.Err() != nil {
			return marked, ctx.Err()
		}

		evt := event.NewEvent(event.TypeReminderDue, a.CostTableID, a.ID, map[string]interface{}{
			event.KeyApprovalType: string(a.ApprovalType),
			"responsible_user_id": a.ResponsibleUserID(),
			"deadline":            a.Deadline,
		})
		if err := w.dispatcher.Dispatch(ctx, evt); err != nil {
			// left unmarked so the next poll retries
			w.logger.Error("Failed to deliver reminder",
				zap.Int64("approval_id", a.ID),
				zap.Error(err))
			continue
		}

		if err := w.source.MarkReminded(ctx, a.ID); err != nil {
			if errors.Is(err, domainwf.ErrInvalidState) {
				w.logger.Info("Approval decided before reminder was recorded",
					zap.Int64("approval_id", a.ID))
				continue
			}
			w.logger.Error("Failed to mark approval reminded",
				zap.Int64("approval_id", a.ID),
				zap.Error(err))
			continue
		}
		marked++
	}

	if len(due) > 0 {
		w.logger.Info("Reminder poll completed",
			zap.Int("due", len(due)),
			zap.Int("marked", marked))
	}
	return marked, nil
}
