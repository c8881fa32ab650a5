package db

import (
	"context"
	"fmt"
)

// crossing_capacity is the only durable table: one row per sailing, keyed by
// departure terminal, arrival terminal and departure time in unix seconds.
const capacitySchema = `
CREATE TABLE IF NOT EXISTS crossing_capacity (
	departure_id        INTEGER NOT NULL,
	arrival_id          INTEGER NOT NULL,
	departure_time      BIGINT  NOT NULL,
	drive_up_capacity   INTEGER NOT NULL,
	reservable_capacity INTEGER NOT NULL,
	total_capacity      INTEGER NOT NULL,
	is_cancelled        BOOLEAN NOT NULL DEFAULT FALSE,
	departure_delta     INTEGER,
	updated_at          BIGINT  NOT NULL,
	PRIMARY KEY (departure_id, arrival_id, departure_time)
);

CREATE INDEX IF NOT EXISTS idx_crossing_capacity_departure_time
	ON crossing_capacity(departure_time);
`

// EnsureSchema creates the capacity table if it doesn't exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, capacitySchema); err != nil {
		return fmt.Errorf("creating crossing_capacity table: %w", err)
	}
	db.logger.Debug("Database schema ensured", "driver", db.driver)
	return nil
}
