// Package refresher keeps the cache store in step with the WSF APIs.
//
// The long cycle rebuilds vessel static data, the day's schedule and the
// terminal list whenever an upstream flush-date token moves. The short cycle
// merges live vessel telemetry and sailing space counts into the cached
// schedule and writes every space reading through to the capacity store.
package refresher

import (
	"context"
	"time"

	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/internal/wsf/cache"
	"github.com/wsf-tracker/internal/wsf/overrides"
	"github.com/wsf-tracker/pkg/wsf/models"
)

// Gateway is the subset of the upstream client the refreshers use.
type Gateway interface {
	CacheFlushDate(ctx context.Context, family models.Family) (string, error)
	Vessels(ctx context.Context) ([]models.VesselInfo, error)
	VesselLocations(ctx context.Context) ([]models.VesselLocation, error)
	TerminalsAndMates(ctx context.Context, date time.Time) ([]models.MatePair, error)
	ScheduleToday(ctx context.Context, dep, arr int) ([]models.Sailing, error)
	RouteDetails(ctx context.Context, date time.Time, dep, arr int) (*models.Route, error)
	Terminals(ctx context.Context) ([]models.Terminal, error)
	SailingSpace(ctx context.Context) ([]models.SpaceReading, error)
}

// CapacityStore persists capacity readings keyed by crossing.
type CapacityStore interface {
	Upsert(ctx context.Context, rec models.Capacity) error
	Range(ctx context.Context, from, to time.Time) ([]models.Capacity, error)
}

type Config struct {
	Location            *time.Location
	ScheduleConcurrency int
}

// Refresher runs the long and short refresh cycles against one cache store.
// The cycles are not re-entrant; Manager guards each with a single-flight flag.
type Refresher struct {
	gateway   Gateway
	store     *cache.Store
	capacity  CapacityStore
	overrides *overrides.Table
	config    Config
	logger    logger.Logger
	now       func() time.Time
}

func New(gateway Gateway, store *cache.Store, capacity CapacityStore, table *overrides.Table, cfg Config, log logger.Logger) *Refresher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ScheduleConcurrency <= 0 {
		cfg.ScheduleConcurrency = 1
	}
	return &Refresher{
		gateway:   gateway,
		store:     store,
		capacity:  capacity,
		overrides: table,
		config:    cfg,
		logger:    log,
		now:       time.Now,
	}
}

// begin publishes the in-flight handle for family, first waiting out a
// refresh of the same family started elsewhere.
func (r *Refresher) begin(ctx context.Context, family models.Family) (func(), error) {
	for {
		if done, ok := r.store.Begin(family); ok {
			return done, nil
		}
		if err := r.store.Await(ctx, family); err != nil {
			return nil, err
		}
	}
}

// startOfDay returns local midnight of t in the schedule time zone.
func (r *Refresher) startOfDay(t time.Time) time.Time {
	local := t.In(r.config.Location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.config.Location)
}

// weekBefore returns the same local wall-clock time seven calendar days
// earlier, so a DST change in between does not shift the slot by an hour.
func (r *Refresher) weekBefore(unix int64) int64 {
	return time.Unix(unix, 0).In(r.config.Location).AddDate(0, 0, -7).Unix()
}
