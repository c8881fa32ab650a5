package capacity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wsf-tracker/internal/common/db"
	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/pkg/wsf/models"
)

// Store persists capacity readings, one row per crossing.
type Store struct {
	db     *db.DB
	logger logger.Logger
	now    func() time.Time
}

func NewStore(database *db.DB, log logger.Logger) *Store {
	return &Store{
		db:     database,
		logger: log,
		now:    time.Now,
	}
}

const upsertQuery = `
	INSERT INTO crossing_capacity (
		departure_id, arrival_id, departure_time,
		drive_up_capacity, reservable_capacity, total_capacity,
		is_cancelled, departure_delta, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (departure_id, arrival_id, departure_time) DO UPDATE SET
		drive_up_capacity   = excluded.drive_up_capacity,
		reservable_capacity = excluded.reservable_capacity,
		total_capacity      = excluded.total_capacity,
		is_cancelled        = excluded.is_cancelled,
		departure_delta     = excluded.departure_delta,
		updated_at          = excluded.updated_at
`

// Upsert writes rec, replacing any row with the same crossing key.
func (s *Store) Upsert(ctx context.Context, rec models.Capacity) error {
	var delta sql.NullInt64
	if rec.DepartureDelta != nil {
		delta = sql.NullInt64{Int64: int64(*rec.DepartureDelta), Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, s.db.Rebind(upsertQuery),
		rec.DepartureID, rec.ArrivalID, rec.DepartureTime,
		rec.DriveUpCapacity, rec.ReservableCapacity, rec.TotalCapacity,
		rec.IsCancelled, delta, s.now().Unix())
	if err != nil {
		return fmt.Errorf("upserting capacity %d-%d@%d: %w",
			rec.DepartureID, rec.ArrivalID, rec.DepartureTime, err)
	}
	return nil
}

const rangeQuery = `
	SELECT departure_id, arrival_id, departure_time,
		drive_up_capacity, reservable_capacity, total_capacity,
		is_cancelled, departure_delta
	FROM crossing_capacity
	WHERE departure_time >= ? AND departure_time <= ?
	ORDER BY departure_id, arrival_id, departure_time
`

// Range returns every row whose departure time falls in [from, to].
func (s *Store) Range(ctx context.Context, from, to time.Time) ([]models.Capacity, error) {
	rows, err := s.db.DB().QueryContext(ctx, s.db.Rebind(rangeQuery), from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying capacity range: %w", err)
	}
	defer rows.Close()

	var records []models.Capacity
	for rows.Next() {
		var rec models.Capacity
		var delta sql.NullInt64
		if err := rows.Scan(
			&rec.DepartureID,
			&rec.ArrivalID,
			&rec.DepartureTime,
			&rec.DriveUpCapacity,
			&rec.ReservableCapacity,
			&rec.TotalCapacity,
			&rec.IsCancelled,
			&delta,
		); err != nil {
			return nil, fmt.Errorf("scanning capacity row: %w", err)
		}
		if delta.Valid {
			d := int(delta.Int64)
			rec.DepartureDelta = &d
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capacity rows: %w", err)
	}

	s.logger.Debug("Loaded capacity rows",
		"from", from.Unix(),
		"to", to.Unix(),
		"rows", len(records))

	return records, nil
}

// Prune deletes rows departing before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.DB().ExecContext(ctx,
		s.db.Rebind("DELETE FROM crossing_capacity WHERE departure_time < ?"), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning capacity rows: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return deleted, nil
}
