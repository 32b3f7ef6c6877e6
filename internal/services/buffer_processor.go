package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/infrastructure/buffer"
)

// ConnectionHealth abstracts the backend monitor.
type ConnectionHealth interface {
	IsOnline() bool
}

// ReplayFunc resends one queued operation.
type ReplayFunc func(ctx context.Context, data json.RawMessage) error

// ProcessorConfig controls how the outbox is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// Retention bounds how long an item may wait before it is discarded.
	Retention time.Duration
}

// BufferProcessor replays outbox items once the backend is reachable again.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig

	mu       sync.RWMutex
	handlers map[string]ReplayFunc
	drainMu  sync.Mutex
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
		handlers: make(map[string]ReplayFunc),
	}

	schedule := fmt.Sprintf("@every %s", cfg.Interval)
	if _, err := bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("outbox drain failed", zap.Error(err))
		}
	}); err != nil {
		bp.logger.Error("invalid outbox schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	return bp
}

// Handle registers the replay function for an operation.
func (bp *BufferProcessor) Handle(operation string, fn ReplayFunc) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.handlers[operation] = fn
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("outbox processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("outbox processor stopped")
}

// Enqueue persists an item for later replay.
func (bp *BufferProcessor) Enqueue(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("outbox not configured")
	}
	return bp.store.Enqueue(item)
}

// Drain replays one batch synchronously. It is a no-op while offline.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	bp.drainMu.Lock()
	defer bp.drainMu.Unlock()

	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	if removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention)); err != nil {
		bp.logger.Warn("outbox cleanup failed", zap.Error(err))
	} else if removed > 0 {
		bp.logger.Warn("discarded expired outbox items", zap.Int("count", removed))
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := bp.processItem(ctx, item)
		if err == nil {
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge replayed outbox item", zap.Error(err))
			}
			continue
		}
		if errors.Is(err, domain.ErrOwnerNotSignedIn) {
			// Held until its owner signs in again; Retention still bounds its age.
			bp.logger.Debug("holding outbox item", zap.String("item_id", item.ID), zap.String("user_id", item.UserID))
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue outbox item", zap.Error(err))
			}
			continue
		}

		bp.logger.Error("failed to replay outbox item",
			zap.String("item_id", item.ID),
			zap.String("operation", item.Operation),
			zap.Error(err))

		item.Retries++
		if !retryable(err) || item.Retries >= bp.cfg.MaxRetries {
			bp.logger.Warn("dropping outbox item", zap.String("item_id", item.ID), zap.Int("retries", item.Retries))
			_ = bp.store.Remove(item)
			continue
		}
		if err := bp.store.Requeue(item); err != nil {
			bp.logger.Error("failed to requeue outbox item", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of queued items.
func (bp *BufferProcessor) Size() (int, error) {
	if bp == nil || bp.store == nil {
		return 0, nil
	}
	return bp.store.Size()
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	bp.mu.RLock()
	handler, ok := bp.handlers[item.Operation]
	bp.mu.RUnlock()
	if !ok {
		return domain.NewError(domain.ErrCodeInvalid, "unsupported operation "+item.Operation)
	}
	return handler(ctx, item.Data)
}

// retryable keeps items whose failure may clear up: no answer or a 5xx/429.
func retryable(err error) bool {
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		return false
	}
	switch dErr.Code {
	case domain.ErrCodeNoResponse:
		return true
	case domain.ErrCodeServer:
		return dErr.Status >= 500 || dErr.Status == 429
	default:
		return false
	}
}
