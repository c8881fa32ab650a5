package refresher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wsf-tracker/internal/wsf/cache"
	"github.com/wsf-tracker/pkg/wsf/models"
)

// flushCheck is the outcome of comparing an upstream flush-date token with
// the last one recorded.
type flushCheck struct {
	token   string
	changed bool
}

// checkFlush fails open: a fetch error or an empty token counts as changed.
func (r *Refresher) checkFlush(ctx context.Context, family models.Family) flushCheck {
	token, err := r.gateway.CacheFlushDate(ctx, family)
	if err != nil {
		r.logger.Warn("Flush date unavailable, assuming changed", "family", family, "error", err)
		return flushCheck{changed: true}
	}
	if token == "" {
		return flushCheck{changed: true}
	}
	return flushCheck{token: token, changed: token != r.store.FlushToken(family)}
}

// LongCycle refreshes vessel static data, the day's schedule and the
// terminal list, skipping each stage whose flush tokens have not moved.
func (r *Refresher) LongCycle(ctx context.Context) error {
	now := r.now()
	today := r.startOfDay(now).Format("2006-01-02")

	vessels := r.checkFlush(ctx, models.FamilyVessels)
	schedule := r.checkFlush(ctx, models.FamilySchedule)
	terminals := r.checkFlush(ctx, models.FamilyTerminals)

	var scheduleDate string
	r.store.Read(func(st *cache.State) { scheduleDate = st.ScheduleDate })
	rollover := scheduleDate != today

	var errs []error
	scheduleRan := false

	if vessels.changed || schedule.changed || rollover {
		r.logger.Info("Refreshing schedule",
			"vessels_changed", vessels.changed,
			"schedule_changed", schedule.changed,
			"rollover", rollover)

		if err := r.refreshSchedule(ctx, now); err != nil {
			errs = append(errs, err)
		} else {
			r.store.SetFlushToken(models.FamilyVessels, vessels.token)
			r.store.SetFlushToken(models.FamilySchedule, schedule.token)
			scheduleRan = true
		}
	} else {
		r.logger.Debug("Schedule unchanged, skipping")
	}

	if terminals.changed || scheduleRan {
		r.logger.Info("Refreshing terminals", "terminals_changed", terminals.changed)

		if err := r.refreshTerminals(ctx, now); err != nil {
			errs = append(errs, err)
		} else {
			r.store.SetFlushToken(models.FamilyTerminals, terminals.token)
		}
	} else {
		r.logger.Debug("Terminals unchanged, skipping")
	}

	return errors.Join(errs...)
}

func (r *Refresher) refreshSchedule(ctx context.Context, now time.Time) error {
	if err := r.mergeVesselInfo(ctx); err != nil {
		return err
	}

	done, err := r.begin(ctx, models.FamilySchedule)
	if err != nil {
		return err
	}
	defer done()

	pairs, err := r.gateway.TerminalsAndMates(ctx, now.In(r.config.Location))
	if err != nil {
		return fmt.Errorf("fetching terminal mates: %w", err)
	}

	sailings, err := r.fetchSailings(ctx, pairs)
	if err != nil {
		return err
	}

	mates := make(map[int][]models.MatePair)
	for _, p := range pairs {
		mates[p.DepartingTerminalID] = append(mates[p.DepartingTerminalID], p)
	}

	var vessels map[int]*models.Vessel
	r.store.Read(func(st *cache.State) {
		vessels = make(map[int]*models.Vessel, len(st.Vessels))
		for id, v := range st.Vessels {
			vessels[id] = v.Clone()
		}
	})

	sched := make(map[cache.RouteKey]map[int64]*models.Crossing, len(pairs))
	for i, p := range pairs {
		key := cache.RouteKey{DepartureID: p.DepartingTerminalID, ArrivalID: p.ArrivingTerminalID}
		sched[key] = buildRoute(key, sailings[i], vessels, now)
	}

	today := r.startOfDay(now)
	shadow, spans := r.loadShadow(ctx, sched, today)
	r.backfill(ctx, sched, today)
	r.keepLiveCapacity(sched)
	r.applyEstimates(sched, shadow)

	r.store.Write(func(st *cache.State) {
		st.Mates = mates
		st.Schedule = sched
		st.LastWeek = shadow
		st.LastWeekSpan = spans
		st.ScheduleDate = today.Format("2006-01-02")
		st.ScheduleUpdatedAt = now
	})

	r.logger.Info("Schedule refreshed", "routes", len(sched), "terminals", len(mates))
	return nil
}

// mergeVesselInfo overwrites the static half of every vessel and leaves the
// live half alone.
func (r *Refresher) mergeVesselInfo(ctx context.Context) error {
	done, err := r.begin(ctx, models.FamilyVessels)
	if err != nil {
		return err
	}
	defer done()

	infos, err := r.gateway.Vessels(ctx)
	if err != nil {
		return fmt.Errorf("fetching vessels: %w", err)
	}

	r.store.Write(func(st *cache.State) {
		for _, info := range infos {
			if v, ok := st.Vessels[info.ID]; ok {
				v.VesselInfo = info
				continue
			}
			st.Vessels[info.ID] = &models.Vessel{VesselInfo: info}
		}
	})
	return nil
}

// fetchSailings fetches today's sailings for every pair, one call per pair,
// with at most ScheduleConcurrency calls in flight. Result i belongs to pairs[i].
func (r *Refresher) fetchSailings(ctx context.Context, pairs []models.MatePair) ([][]models.Sailing, error) {
	results := make([][]models.Sailing, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.ScheduleConcurrency)
	for i, p := range pairs {
		g.Go(func() error {
			sailings, err := r.gateway.ScheduleToday(gctx, p.DepartingTerminalID, p.ArrivingTerminalID)
			if err != nil {
				return fmt.Errorf("fetching schedule %d-%d: %w", p.DepartingTerminalID, p.ArrivingTerminalID, err)
			}
			results[i] = sailings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// buildRoute turns a route's sailings into crossings keyed by departure time.
// A vessel's first sailing on the route today starts with no delay.
func buildRoute(key cache.RouteKey, sailings []models.Sailing, vessels map[int]*models.Vessel, now time.Time) map[int64]*models.Crossing {
	route := make(map[int64]*models.Crossing, len(sailings))
	seen := make(map[int]bool)

	for _, s := range sailings {
		c := &models.Crossing{
			DepartureTerminalID: key.DepartureID,
			ArrivalTerminalID:   key.ArrivalID,
			DepartureTime:       s.DepartureTime.Unix(),
			LoadingRule:         s.LoadingRule,
			AllowsPassengers:    models.AllowsPassengers(s.LoadingRule),
			AllowsVehicles:      models.AllowsVehicles(s.LoadingRule),
			VesselID:            s.VesselID,
		}
		if s.ArrivalTime != nil {
			at := s.ArrivalTime.Unix()
			c.ArrivalTime = &at
		}
		if s.VesselID != 0 {
			c.ResetDelay = !seen[s.VesselID]
			seen[s.VesselID] = true
			c.Vessel = vesselSnapshot(vessels[s.VesselID], c.ResetDelay)
		}
		c.HasPassed = c.Passed(now)
		route[c.DepartureTime] = c
	}
	return route
}

func vesselSnapshot(v *models.Vessel, resetDelay bool) *models.Vessel {
	if v == nil {
		return nil
	}
	snap := v.Clone()
	if resetDelay {
		snap.DepartureDelta = nil
	}
	return snap
}

// loadShadow returns last week's capacity rows by route, along with the
// departure span each route was loaded for. A route already shadowed today
// is carried over while its loaded span still covers its sailings shifted
// back a week; the rest share one range query. A failed query leaves those
// routes unshadowed so the next refresh retries them.
func (r *Refresher) loadShadow(ctx context.Context, sched map[cache.RouteKey]map[int64]*models.Crossing, today time.Time) (map[cache.RouteKey]map[int64]*models.Capacity, map[cache.RouteKey]cache.Span) {
	need := make(map[cache.RouteKey]cache.Span, len(sched))
	for key, route := range sched {
		if len(route) == 0 {
			continue
		}
		times := cache.SortedTimes(route)
		need[key] = cache.Span{From: r.weekBefore(times[0]), To: r.weekBefore(times[len(times)-1])}
	}

	shadow := make(map[cache.RouteKey]map[int64]*models.Capacity, len(need))
	spans := make(map[cache.RouteKey]cache.Span, len(need))
	r.store.Read(func(st *cache.State) {
		if st.ScheduleDate != today.Format("2006-01-02") {
			return
		}
		for key, span := range need {
			if loaded, ok := st.LastWeekSpan[key]; ok && loaded.Covers(span) {
				shadow[key] = st.LastWeek[key]
				spans[key] = loaded
			}
		}
	})

	missing := make(map[cache.RouteKey]bool)
	var window cache.Span
	for key, span := range need {
		if _, ok := shadow[key]; ok {
			continue
		}
		if len(missing) == 0 || span.From < window.From {
			window.From = span.From
		}
		if len(missing) == 0 || span.To > window.To {
			window.To = span.To
		}
		missing[key] = true
	}
	if len(missing) == 0 {
		return shadow, spans
	}

	rows, err := r.capacity.Range(ctx, time.Unix(window.From, 0), time.Unix(window.To, 0))
	if err != nil {
		r.logger.Warn("Failed to load last week's capacity", "routes", len(missing), "error", err)
		return shadow, spans
	}

	for key := range missing {
		shadow[key] = make(map[int64]*models.Capacity)
		spans[key] = need[key]
	}
	for i := range rows {
		key := cache.RouteKey{DepartureID: rows[i].DepartureID, ArrivalID: rows[i].ArrivalID}
		if missing[key] {
			shadow[key][rows[i].DepartureTime] = &rows[i]
		}
	}

	r.logger.Debug("Loaded last week's capacity", "routes", len(missing), "rows", len(rows))
	return shadow, spans
}

// backfill attaches persisted capacity from yesterday onwards to the
// crossings with the exact same key.
func (r *Refresher) backfill(ctx context.Context, sched map[cache.RouteKey]map[int64]*models.Crossing, today time.Time) {
	from := today.AddDate(0, 0, -1)
	to := today.AddDate(0, 0, 2)

	rows, err := r.capacity.Range(ctx, from, to)
	if err != nil {
		r.logger.Warn("Failed to backfill capacity", "error", err)
		return
	}

	attached := 0
	for i := range rows {
		key := cache.RouteKey{DepartureID: rows[i].DepartureID, ArrivalID: rows[i].ArrivalID}
		if c, ok := sched[key][rows[i].DepartureTime]; ok {
			c.Capacity = rows[i].Clone()
			attached++
		}
	}
	r.logger.Debug("Backfilled capacity", "rows", len(rows), "attached", attached)
}

// keepLiveCapacity carries each surviving crossing's in-memory capacity into
// the rebuilt schedule, replacing whatever backfill attached. Readings reach
// memory before the store, so the in-memory copy is never the older one.
func (r *Refresher) keepLiveCapacity(sched map[cache.RouteKey]map[int64]*models.Crossing) {
	kept := 0
	r.store.Read(func(st *cache.State) {
		for key, route := range sched {
			old := st.Schedule[key]
			for t, c := range route {
				if prev, ok := old[t]; ok && prev.Capacity != nil {
					c.Capacity = prev.Capacity.Clone()
					kept++
				}
			}
		}
	})
	if kept > 0 {
		r.logger.Debug("Kept live capacity across rebuild", "crossings", kept)
	}
}

func (r *Refresher) refreshTerminals(ctx context.Context, now time.Time) error {
	done, err := r.begin(ctx, models.FamilyTerminals)
	if err != nil {
		return err
	}
	defer done()

	terms, err := r.gateway.Terminals(ctx)
	if err != nil {
		return fmt.Errorf("fetching terminals: %w", err)
	}

	var mates map[int][]models.MatePair
	r.store.Read(func(st *cache.State) {
		mates = make(map[int][]models.MatePair, len(st.Mates))
		for id, pairs := range st.Mates {
			mates[id] = append([]models.MatePair(nil), pairs...)
		}
	})

	date := now.In(r.config.Location)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.ScheduleConcurrency)

	result := make(map[int]*models.Terminal, len(terms))
	for i := range terms {
		t := &terms[i]
		if r.overrides != nil {
			r.overrides.Apply(t)
			t.Cameras = r.overrides.Cameras(t.ID)
		}

		t.Mates = make([]models.Mate, len(mates[t.ID]))
		for j, p := range mates[t.ID] {
			t.Mates[j] = models.Mate{TerminalID: p.ArrivingTerminalID, Name: p.ArrivingName}

			mate := &t.Mates[j]
			g.Go(func() error {
				route, err := r.gateway.RouteDetails(gctx, date, t.ID, mate.TerminalID)
				if err != nil {
					return fmt.Errorf("fetching route %d-%d: %w", t.ID, mate.TerminalID, err)
				}
				mate.Route = route
				return nil
			})
		}
		result[t.ID] = t
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.store.Write(func(st *cache.State) { st.Terminals = result })

	r.logger.Info("Terminals refreshed", "terminals", len(result))
	return nil
}
