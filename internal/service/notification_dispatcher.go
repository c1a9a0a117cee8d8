package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-approval-api/internal/models"
	"github.com/noah-isme/placement-approval-api/internal/repository"
	"github.com/noah-isme/placement-approval-api/pkg/jobs"
)

const reassignmentJobType = "reassignment_notice"

// errSupersededNotice marks a notice whose entry is no longer the last one.
var errSupersededNotice = errors.New("reassignment superseded by a later change")

// Notifier delivers reassignment notices to the people involved.
type Notifier interface {
	NotifyReassignment(ctx context.Context, notice models.ReassignmentNotice) error
}

// LogNotifier writes notices to the structured log. It is the default when no
// delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// NotifyReassignment implements Notifier.
func (n *LogNotifier) NotifyReassignment(_ context.Context, notice models.ReassignmentNotice) error {
	fields := []zap.Field{
		zap.Int64("record_id", notice.RecordID),
		zap.Int64("enrollment_id", notice.EnrollmentID),
		zap.Int("seq", notice.Change.Seq),
		zap.Int64("new_reviewer_id", notice.Change.NewReviewerID),
		zap.Int64("actor_id", notice.Change.ActorID),
	}
	if notice.Change.PreviousReviewerID != nil {
		fields = append(fields, zap.Int64("previous_reviewer_id", *notice.Change.PreviousReviewerID))
	}
	n.logger.Info("reviewer reassignment notice", fields...)
	return nil
}

type noticeStore interface {
	ListPendingNotices(ctx context.Context, limit int) ([]models.ReassignmentNotice, error)
	Mutate(ctx context.Context, id int64, fn repository.RecordMutation) (*models.ReviewerStatusRecord, error)
}

// DispatcherConfig tunes the notification worker pool.
type DispatcherConfig struct {
	Workers       int
	MaxRetries    int
	RetryDelay    time.Duration
	SweepBatch    int
	SweepInterval time.Duration
	SweepTimeout  time.Duration
}

// NotificationDispatcher drains pending reassignment entries through a
// Notifier and flags them once delivered. Delivery is at-least-once at best.
type NotificationDispatcher struct {
	records  noticeStore
	notifier Notifier
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      DispatcherConfig

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewNotificationDispatcher wires the dispatcher and its queue.
func NewNotificationDispatcher(records noticeStore, notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg DispatcherConfig) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 30 * time.Second
	}
	d := &NotificationDispatcher{
		records:  records,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
	}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDiscard: func(job jobs.Job, err error) {
			if notice, ok := job.Payload.(models.ReassignmentNotice); ok {
				d.release(notice)
			}
		},
	})
	return d
}

// Start launches the workers and the periodic sweep. It returns immediately.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
	go d.sweepLoop(ctx)
}

// Stop halts the workers.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// Publish queues a single notice without blocking the caller.
func (d *NotificationDispatcher) Publish(notice models.ReassignmentNotice) error {
	if !d.claim(notice) {
		return nil
	}
	if err := d.queue.TryEnqueue(d.job(notice)); err != nil {
		d.release(notice)
		return err
	}
	return nil
}

// Sweep queues every record whose last reassignment is still unnotified and
// returns how many notices were queued.
func (d *NotificationDispatcher) Sweep(ctx context.Context) (int, error) {
	notices, err := d.records.ListPendingNotices(ctx, d.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending notices: %w", err)
	}
	queued := 0
	for _, notice := range notices {
		if !d.claim(notice) {
			continue
		}
		if err := d.queue.Enqueue(ctx, d.job(notice)); err != nil {
			d.release(notice)
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (d *NotificationDispatcher) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, d.cfg.SweepTimeout)
			queued, err := d.Sweep(sweepCtx)
			cancel()
			if err != nil {
				d.logger.Warn("notification sweep failed", zap.Error(err))
				continue
			}
			if queued > 0 {
				d.logger.Info("notification sweep queued notices", zap.Int("queued", queued))
			}
		}
	}
}

func (d *NotificationDispatcher) job(notice models.ReassignmentNotice) jobs.Job {
	return jobs.Job{ID: uuid.NewString(), Type: reassignmentJobType, Payload: notice}
}

func (d *NotificationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(models.ReassignmentNotice)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	err := d.notifier.NotifyReassignment(ctx, notice)
	d.metrics.RecordNotification(err)
	if err != nil {
		return err
	}

	_, err = d.records.Mutate(ctx, notice.RecordID, func(rec *models.ReviewerStatusRecord) error {
		latest := rec.LatestChange()
		if latest == nil || latest.Seq != notice.Change.Seq {
			return errSupersededNotice
		}
		rec.MarkNotificationSent()
		return nil
	})
	if errors.Is(err, errSupersededNotice) {
		d.logger.Info("reassignment notice superseded", zap.Int64("record_id", notice.RecordID), zap.Int("seq", notice.Change.Seq))
		err = nil
	}
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	d.release(notice)
	return nil
}

func noticeKey(notice models.ReassignmentNotice) string {
	return fmt.Sprintf("%d:%d", notice.RecordID, notice.Change.Seq)
}

func (d *NotificationDispatcher) claim(notice models.ReassignmentNotice) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := noticeKey(notice)
	if _, busy := d.inflight[key]; busy {
		return false
	}
	d.inflight[key] = struct{}{}
	return true
}

func (d *NotificationDispatcher) release(notice models.ReassignmentNotice) {
	d.mu.Lock()
	delete(d.inflight, noticeKey(notice))
	d.mu.Unlock()
}
