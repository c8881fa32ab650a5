package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wsf-tracker/internal/common/db"
	"github.com/wsf-tracker/internal/common/logger"
)

// CleanupScheduler handles periodic maintenance tasks
type CleanupScheduler struct {
	maintenance *Maintenance
	logger      logger.Logger
	config      SchedulerConfig
	isRunning   bool
	mu          sync.RWMutex
	cancelFn    context.CancelFunc
	wg          sync.WaitGroup

	resultMu   sync.RWMutex
	lastResult *CleanupResult
	cleanupMu  sync.Mutex // one cleanup at a time, scheduled or manual
}

// SchedulerConfig contains configuration for the cleanup scheduler
type SchedulerConfig struct {
	CleanupInterval time.Duration // How often to prune capacity history
	Retention       time.Duration // How long capacity rows are kept
	InitialDelay    time.Duration // Wait before the first cleanup after start
	Vacuum          bool          // Run VACUUM after a cleanup that deleted rows
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CleanupInterval: 24 * time.Hour,
		Retention:       90 * 24 * time.Hour,
		InitialDelay:    5 * time.Minute, // after the first schedule refresh
		Vacuum:          true,
	}
}

// NewCleanupScheduler creates a new cleanup scheduler
func NewCleanupScheduler(database *db.DB, pruner Pruner, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	return &CleanupScheduler{
		maintenance: New(database, pruner, logger),
		logger:      logger,
		config:      config,
	}
}

// Start begins the cleanup scheduling
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}
	if s.config.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"interval", s.config.CleanupInterval,
		"retention", s.config.Retention)

	s.wg.Add(1)
	go s.cleanupLoop(ctx)

	return nil
}

// Stop stops the cleanup scheduler
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}

	s.logger.Info("Stopping cleanup scheduler")

	if s.cancelFn != nil {
		s.cancelFn()
	}
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Cleanup scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *CleanupScheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	initialDelay := time.NewTimer(s.config.InitialDelay)
	defer initialDelay.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup loop stopping")
			return

		case <-initialDelay.C:
			s.performCleanup(ctx)

		case <-ticker.C:
			s.performCleanup(ctx)
		}
	}
}

// performCleanup executes one capacity cleanup and records the result
func (s *CleanupScheduler) performCleanup(ctx context.Context) CleanupResult {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	result := s.maintenance.CleanupOldCapacity(ctx, s.config.Retention)

	s.resultMu.Lock()
	s.lastResult = &result
	s.resultMu.Unlock()

	if !result.Success {
		s.logger.Error("Capacity cleanup failed", "error", result.Error, "duration", result.Duration)
		return result
	}

	if s.config.Vacuum && result.RecordsDeleted > 0 {
		if err := s.maintenance.VacuumCapacityTable(ctx); err != nil {
			s.logger.Warn("Failed to vacuum after cleanup", "error", err)
		}
	}
	return result
}

// TriggerCleanup manually triggers a capacity cleanup (for testing/manual use)
func (s *CleanupScheduler) TriggerCleanup(ctx context.Context) (CleanupResult, error) {
	s.logger.Info("Manual capacity cleanup triggered")

	result := s.performCleanup(ctx)
	if !result.Success {
		return result, fmt.Errorf("capacity cleanup: %s", result.Error)
	}
	return result, nil
}

// GetStatus returns the current status of the cleanup scheduler
func (s *CleanupScheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	s.resultMu.RLock()
	defer s.mu.RUnlock()
	defer s.resultMu.RUnlock()

	status := map[string]interface{}{
		"is_running": s.isRunning,
		"interval":   s.config.CleanupInterval.String(),
		"retention":  s.config.Retention.String(),
		"vacuum":     s.config.Vacuum,
	}
	if s.lastResult != nil {
		status["last_cutoff"] = s.lastResult.Cutoff
		status["last_records_deleted"] = s.lastResult.RecordsDeleted
		status["last_success"] = s.lastResult.Success
	}
	return status
}
