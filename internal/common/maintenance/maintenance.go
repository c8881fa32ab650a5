package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/wsf-tracker/internal/common/db"
	"github.com/wsf-tracker/internal/common/logger"
)

// Pruner deletes persisted rows departing before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupResult represents the result of a cleanup operation
type CleanupResult struct {
	Cutoff         time.Time
	RecordsDeleted int64
	Duration       time.Duration
	Success        bool
	Error          string
}

// Maintenance handles database cleanup and maintenance operations
type Maintenance struct {
	db     *db.DB
	pruner Pruner
	logger logger.Logger
	now    func() time.Time
}

// New creates a new Maintenance instance
func New(database *db.DB, pruner Pruner, logger logger.Logger) *Maintenance {
	return &Maintenance{
		db:     database,
		pruner: pruner,
		logger: logger,
		now:    time.Now,
	}
}

// CleanupOldCapacity removes capacity history departing more than retention
// ago. Estimates read rows one week back, so retention must exceed that.
func (m *Maintenance) CleanupOldCapacity(ctx context.Context, retention time.Duration) CleanupResult {
	start := m.now()
	result := CleanupResult{Cutoff: start.Add(-retention)}

	if retention <= 8*24*time.Hour {
		result.Error = fmt.Sprintf("retention %s would discard rows needed for estimates", retention)
		return result
	}

	m.logger.Info("Starting cleanup of old capacity data",
		"retention", retention.String(),
		"cutoff", result.Cutoff)

	deleted, err := m.pruner.Prune(ctx, result.Cutoff)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.RecordsDeleted = deleted
	result.Success = true

	m.logger.Info("Capacity cleanup completed",
		"records_deleted", deleted,
		"duration", result.Duration)

	return result
}

// VacuumCapacityTable reclaims space after a cleanup (must be called outside transaction)
func (m *Maintenance) VacuumCapacityTable(ctx context.Context) error {
	query := "VACUUM ANALYZE crossing_capacity"
	if m.db.Driver() == db.DriverSQLite {
		query = "VACUUM"
	}

	start := time.Now()
	if _, err := m.db.DB().ExecContext(ctx, query); err != nil {
		return fmt.Errorf("vacuuming capacity table: %w", err)
	}

	m.logger.Info("VACUUM completed", "driver", m.db.Driver(), "duration", time.Since(start))
	return nil
}
