package refresher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wsf-tracker/internal/wsf/cache"
	"github.com/wsf-tracker/pkg/wsf/models"
)

// ShortCycle merges live vessel telemetry and sailing space counts into the
// cache, persists the readings and recomputes estimates. A failure in one
// half does not stop the other.
func (r *Refresher) ShortCycle(ctx context.Context) error {
	now := r.now()

	var errs []error
	if err := r.refreshTiming(ctx, now); err != nil {
		errs = append(errs, err)
	}

	readings, err := r.gateway.SailingSpace(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetching sailing space: %w", err))
	}

	writes, err := r.refreshCrossings(ctx, readings, now)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	r.persist(ctx, writes)

	return errors.Join(errs...)
}

// refreshTiming applies live vessel locations. The departure delta is kept
// from the previous poll when the reading lacks either departure time, and
// dockedTime is stamped only when a vessel arrives at the dock.
func (r *Refresher) refreshTiming(ctx context.Context, now time.Time) error {
	done, err := r.begin(ctx, models.FamilyVessels)
	if err != nil {
		return err
	}
	defer done()

	locs, err := r.gateway.VesselLocations(ctx)
	if err != nil {
		return fmt.Errorf("fetching vessel locations: %w", err)
	}

	r.store.Write(func(st *cache.State) {
		for _, loc := range locs {
			v, ok := st.Vessels[loc.VesselID]
			if !ok {
				v = &models.Vessel{VesselInfo: models.VesselInfo{ID: loc.VesselID, Name: loc.VesselName}}
				st.Vessels[loc.VesselID] = v
			}
			applyLocation(v, loc, now)
		}
	})
	return nil
}

func applyLocation(v *models.Vessel, loc models.VesselLocation, now time.Time) {
	if loc.LeftDock != nil && loc.ScheduledDeparture != nil {
		delta := int(loc.LeftDock.Sub(*loc.ScheduledDeparture) / time.Second)
		v.DepartureDelta = &delta
	}

	switch {
	case loc.AtDock && !v.AtDock:
		docked := now
		v.DockedTime = &docked
	case !loc.AtDock:
		v.DockedTime = nil
	}

	v.Latitude = loc.Latitude
	v.Longitude = loc.Longitude
	v.Speed = loc.Speed
	v.Heading = loc.Heading
	v.InService = loc.InService
	v.AtDock = loc.AtDock
	v.LeftDock = loc.LeftDock
	v.ETA = loc.ETA
	v.ScheduledDeparture = loc.ScheduledDeparture
	v.DepartingTerminalID = loc.DepartingTerminalID
	v.ArrivingTerminalID = loc.ArrivingTerminalID
	v.RouteAbbreviation = loc.RouteAbbreviation
}

// refreshCrossings waits out any schedule rebuild, then brings every
// crossing's vessel snapshot and hasPassed up to date, attaches the space
// readings and recomputes estimates. It returns the capacity rows to persist.
func (r *Refresher) refreshCrossings(ctx context.Context, readings []models.SpaceReading, now time.Time) ([]models.Capacity, error) {
	done, err := r.begin(ctx, models.FamilySchedule)
	if err != nil {
		return nil, err
	}
	defer done()

	var writes []models.Capacity
	r.store.Write(func(st *cache.State) {
		refreshSnapshots(st, now)
		writes = r.applyReadings(st, readings, now)
		r.applyEstimates(st.Schedule, st.LastWeek)
	})
	return writes, nil
}

func refreshSnapshots(st *cache.State, now time.Time) {
	for _, route := range st.Schedule {
		for _, c := range route {
			if v, ok := st.Vessels[c.VesselID]; ok {
				c.Vessel = vesselSnapshot(v, c.ResetDelay)
			}
			c.HasPassed = c.Passed(now)
		}
	}
}

// applyReadings attaches each reading to its crossing and applies the
// supersession correction. Readings with no crossing are dropped.
//
// The correction is a best-effort heuristic: upstream stops reporting a
// sailing once a later one is loading, so a later sailing that has started
// filling is taken as evidence the earlier one left full. Nothing orders
// it against the earlier sailing's own reading in the same or a later batch.
func (r *Refresher) applyReadings(st *cache.State, readings []models.SpaceReading, now time.Time) []models.Capacity {
	var writes []models.Capacity
	dropped := 0

	for _, rd := range readings {
		key := cache.RouteKey{DepartureID: rd.DepartureID, ArrivalID: rd.ArrivalID}
		route := st.Schedule[key]
		c, ok := route[rd.DepartureTime.Unix()]
		if !ok {
			dropped++
			continue
		}

		rec := models.Capacity{
			DepartureID:        rd.DepartureID,
			ArrivalID:          rd.ArrivalID,
			DepartureTime:      c.DepartureTime,
			DriveUpCapacity:    rd.DriveUpCapacity,
			ReservableCapacity: rd.ReservableCapacity,
			TotalCapacity:      rd.TotalCapacity,
			IsCancelled:        rd.IsCancelled,
		}
		if c.Vessel != nil && c.Vessel.DepartureDelta != nil {
			d := *c.Vessel.DepartureDelta
			rec.DepartureDelta = &d
		}
		c.Capacity = rec.Clone()
		writes = append(writes, rec)

		if corrected, ok := supersede(cache.Previous(route, c.DepartureTime), &rec, now); ok {
			writes = append(writes, corrected)
		}
	}

	if dropped > 0 {
		r.logger.Debug("Dropped space readings without a crossing", "count", dropped)
	}
	return writes
}

// supersede forces prev to no space left when it has not passed, is not
// already full and cur has taken some space. It returns the corrected row.
func supersede(prev *models.Crossing, cur *models.Capacity, now time.Time) (models.Capacity, bool) {
	if prev == nil || prev.Passed(now) || cur.IsEmpty() {
		return models.Capacity{}, false
	}
	if prev.Capacity != nil && prev.Capacity.IsFull() {
		return models.Capacity{}, false
	}

	var corrected models.Capacity
	if prev.Capacity != nil {
		corrected = *prev.Capacity.Clone()
	} else {
		corrected = models.Capacity{
			DepartureID:   prev.DepartureTerminalID,
			ArrivalID:     prev.ArrivalTerminalID,
			DepartureTime: prev.DepartureTime,
			TotalCapacity: cur.TotalCapacity,
		}
	}
	corrected.DriveUpCapacity = 0
	corrected.ReservableCapacity = 0

	prev.Capacity = corrected.Clone()
	return corrected, true
}

// applyEstimates sets each upcoming crossing's estimate from the shadow row
// one calendar week earlier, or clears it when there is none.
func (r *Refresher) applyEstimates(sched map[cache.RouteKey]map[int64]*models.Crossing, shadow map[cache.RouteKey]map[int64]*models.Capacity) {
	for key, route := range sched {
		for _, c := range route {
			if c.HasPassed {
				continue
			}
			prior, ok := shadow[key][r.weekBefore(c.DepartureTime)]
			if !ok {
				c.Estimate = nil
				continue
			}
			c.Estimate = &models.Estimate{
				DriveUpCapacity:    prior.DriveUpCapacity,
				ReservableCapacity: prior.ReservableCapacity,
			}
		}
	}
}

// persist writes capacity rows through to the store. Failures are logged;
// the in-memory state already reflects the readings.
func (r *Refresher) persist(ctx context.Context, writes []models.Capacity) {
	failed := 0
	for _, rec := range writes {
		if err := r.capacity.Upsert(ctx, rec); err != nil {
			failed++
			r.logger.Warn("Failed to persist capacity",
				"departure_id", rec.DepartureID,
				"arrival_id", rec.ArrivalID,
				"departure_time", rec.DepartureTime,
				"error", err)
		}
	}
	if len(writes) > 0 {
		r.logger.Debug("Persisted capacity", "rows", len(writes)-failed, "failed", failed)
	}
}
