package refresher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wsf-tracker/internal/common/logger"
)

type ManagerConfig struct {
	LongInterval  time.Duration
	ShortInterval time.Duration
}

// cycleStats records the outcome of the most recent run of one cycle.
type cycleStats struct {
	mu       sync.RWMutex
	lastRun  time.Time
	duration time.Duration
	lastErr  error
	skipped  int64
}

func (c *cycleStats) record(start time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun = start
	c.duration = time.Since(start)
	c.lastErr = err
}

func (c *cycleStats) status() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := map[string]interface{}{
		"last_run": c.lastRun,
		"duration": c.duration.String(),
		"skipped":  atomic.LoadInt64(&c.skipped),
	}
	if c.lastErr != nil {
		s["last_error"] = c.lastErr.Error()
	}
	return s
}

// Manager drives the long and short cycles on their own tickers.
type Manager struct {
	refresher *Refresher
	config    ManagerConfig
	logger    logger.Logger

	longBusy  atomic.Bool
	shortBusy atomic.Bool
	long      cycleStats
	short     cycleStats

	mu        sync.RWMutex
	isRunning bool
	cancelFn  context.CancelFunc
	wg        sync.WaitGroup
}

func NewManager(r *Refresher, cfg ManagerConfig, log logger.Logger) *Manager {
	return &Manager{
		refresher: r,
		config:    cfg,
		logger:    log,
	}
}

// Start runs a long cycle immediately, then both cycles on their tickers
// until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("refresh manager is already running")
	}
	if m.config.LongInterval <= 0 || m.config.ShortInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFn = cancel
	m.isRunning = true

	m.logger.Info("Starting refresh manager",
		"long_interval", m.config.LongInterval,
		"short_interval", m.config.ShortInterval)

	m.wg.Add(2)
	go m.longLoop(ctx)
	go m.shortLoop(ctx)

	return nil
}

// Stop cancels both loops and waits for a running cycle to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.logger.Info("Stopping refresh manager")
	if m.cancelFn != nil {
		m.cancelFn()
	}
	m.isRunning = false
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Refresh manager stopped")
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

func (m *Manager) Status() map[string]interface{} {
	return map[string]interface{}{
		"is_running":     m.IsRunning(),
		"long_interval":  m.config.LongInterval.String(),
		"short_interval": m.config.ShortInterval.String(),
		"long":           m.long.status(),
		"short":          m.short.status(),
	}
}

func (m *Manager) longLoop(ctx context.Context) {
	defer m.wg.Done()

	m.RunLong(ctx)

	ticker := time.NewTicker(m.config.LongInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Long refresh loop stopping")
			return
		case <-ticker.C:
			m.RunLong(ctx)
		}
	}
}

func (m *Manager) shortLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ShortInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Short refresh loop stopping")
			return
		case <-ticker.C:
			m.RunShort(ctx)
		}
	}
}

// RunLong runs one long cycle unless one is already running, in which case
// it returns false without doing anything.
func (m *Manager) RunLong(ctx context.Context) bool {
	return m.run(ctx, "long", &m.longBusy, &m.long, m.refresher.LongCycle)
}

// RunShort is RunLong for the short cycle.
func (m *Manager) RunShort(ctx context.Context) bool {
	return m.run(ctx, "short", &m.shortBusy, &m.short, m.refresher.ShortCycle)
}

func (m *Manager) run(ctx context.Context, name string, busy *atomic.Bool, stats *cycleStats, cycle func(context.Context) error) bool {
	if !busy.CompareAndSwap(false, true) {
		atomic.AddInt64(&stats.skipped, 1)
		m.logger.Warn("Refresh cycle still running, skipping tick", "cycle", name)
		return false
	}
	defer busy.Store(false)

	start := time.Now()
	err := cycle(ctx)
	stats.record(start, err)

	if err != nil {
		m.logger.Error("Refresh cycle failed", "cycle", name, "error", err, "duration", time.Since(start))
	} else {
		m.logger.Debug("Refresh cycle completed", "cycle", name, "duration", time.Since(start))
	}
	return true
}
