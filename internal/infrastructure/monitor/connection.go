package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/companion/api/transport"
	"github.com/fastygo/companion/domain"
)

// HealthChecker probes the backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (transport.HealthStatus, error)
}

// Sizer reports how many items wait in the outbox.
type Sizer interface {
	Size() (int, error)
}

type Monitor struct {
	backend HealthChecker
	outbox  Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(backend HealthChecker, outbox Sizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		backend:  backend,
		outbox:   outbox,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Backend
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Refresh probes immediately and returns the new status.
func (m *Monitor) Refresh(ctx context.Context) Status {
	online, lastErr := m.checkBackend(ctx)
	outboxOK, outboxSize := m.checkOutbox()
	status := Status{
		Backend:    online,
		Outbox:     outboxOK,
		OutboxSize: outboxSize,
		LastError:  lastErr,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if prev.Backend != status.Backend || prev.LastCheck.IsZero() {
		m.logger.Info("backend connectivity", zap.Bool("online", status.Backend), zap.Int("outbox_size", outboxSize))
	}
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refreshWithTimeout()
	for {
		select {
		case <-ticker.C:
			m.refreshWithTimeout()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refreshWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.Refresh(ctx)
}

func (m *Monitor) checkBackend(ctx context.Context) (bool, string) {
	if m.backend == nil {
		return false, "no health checker"
	}
	status, err := m.backend.HealthCheck(ctx)
	if err != nil {
		return false, domain.Message(err)
	}
	return status.Healthy(), ""
}

func (m *Monitor) checkOutbox() (bool, int) {
	if m.outbox == nil {
		return false, 0
	}
	size, err := m.outbox.Size()
	if err != nil {
		m.logger.Warn("outbox size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
