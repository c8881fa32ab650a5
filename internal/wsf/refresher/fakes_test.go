package refresher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/internal/wsf/cache"
	"github.com/wsf-tracker/internal/wsf/overrides"
	"github.com/wsf-tracker/pkg/wsf/models"
)

var pacific = time.FixedZone("PDT", -7*60*60)

// noon is the wall clock used by most tests: 2024-05-01 12:00 Pacific.
var noon = time.Date(2024, 5, 1, 12, 0, 0, 0, pacific)

var errUpstream = errors.New("upstream unavailable")

type fakeGateway struct {
	mu sync.Mutex

	tokens    map[models.Family]string
	vessels   []models.VesselInfo
	locations []models.VesselLocation
	pairs     []models.MatePair
	sailings  map[cache.RouteKey][]models.Sailing
	routes    map[cache.RouteKey]*models.Route
	terminals []models.Terminal
	space     []models.SpaceReading

	scheduleErr error
	calls       map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tokens: map[models.Family]string{
			models.FamilySchedule:  "/Date(1714500000000-0700)/",
			models.FamilyVessels:   "/Date(1714500000000-0700)/",
			models.FamilyTerminals: "/Date(1714500000000-0700)/",
		},
		sailings: make(map[cache.RouteKey][]models.Sailing),
		routes:   make(map[cache.RouteKey]*models.Route),
		calls:    make(map[string]int),
	}
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGateway) called(name string) {
	g.mu.Lock()
	g.calls[name]++
	g.mu.Unlock()
}

func (g *fakeGateway) CacheFlushDate(ctx context.Context, family models.Family) (string, error) {
	g.called("flush")
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tokens[family], nil
}

func (g *fakeGateway) Vessels(ctx context.Context) ([]models.VesselInfo, error) {
	g.called("vessels")
	return append([]models.VesselInfo(nil), g.vessels...), nil
}

func (g *fakeGateway) VesselLocations(ctx context.Context) ([]models.VesselLocation, error) {
	g.called("locations")
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.VesselLocation(nil), g.locations...), nil
}

func (g *fakeGateway) TerminalsAndMates(ctx context.Context, date time.Time) ([]models.MatePair, error) {
	g.called("mates")
	return append([]models.MatePair(nil), g.pairs...), nil
}

func (g *fakeGateway) ScheduleToday(ctx context.Context, dep, arr int) ([]models.Sailing, error) {
	g.called("schedule")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.scheduleErr != nil {
		return nil, g.scheduleErr
	}
	return append([]models.Sailing(nil), g.sailings[cache.RouteKey{DepartureID: dep, ArrivalID: arr}]...), nil
}

func (g *fakeGateway) RouteDetails(ctx context.Context, date time.Time, dep, arr int) (*models.Route, error) {
	g.called("route")
	g.mu.Lock()
	defer g.mu.Unlock()
	route := g.routes[cache.RouteKey{DepartureID: dep, ArrivalID: arr}]
	if route == nil {
		return nil, nil
	}
	cp := *route
	return &cp, nil
}

func (g *fakeGateway) Terminals(ctx context.Context) ([]models.Terminal, error) {
	g.called("terminals")
	return append([]models.Terminal(nil), g.terminals...), nil
}

func (g *fakeGateway) SailingSpace(ctx context.Context) ([]models.SpaceReading, error) {
	g.called("space")
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.SpaceReading(nil), g.space...), nil
}

type capacityKey struct {
	dep, arr int
	time     int64
}

type fakeCapacity struct {
	mu        sync.Mutex
	rows      map[capacityKey]models.Capacity
	upsertErr error
	rangeErr  error
}

func newFakeCapacity() *fakeCapacity {
	return &fakeCapacity{rows: make(map[capacityKey]models.Capacity)}
}

func (f *fakeCapacity) Upsert(ctx context.Context, rec models.Capacity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.rows[capacityKey{rec.DepartureID, rec.ArrivalID, rec.DepartureTime}] = rec
	return nil
}

func (f *fakeCapacity) Range(ctx context.Context, from, to time.Time) ([]models.Capacity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []models.Capacity
	for _, rec := range f.rows {
		if rec.DepartureTime >= from.Unix() && rec.DepartureTime <= to.Unix() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime < out[j].DepartureTime })
	return out, nil
}

func (f *fakeCapacity) get(dep, arr int, t int64) (models.Capacity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[capacityKey{dep, arr, t}]
	return rec, ok
}

// testClock is a settable wall clock for the refresher.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestRefresher(gw Gateway, capStore CapacityStore, clock *testClock) (*Refresher, *cache.Store) {
	store := cache.New()
	table, err := overrides.Parse([]byte("terminals:\n  - id: 7\n    name: Seattle\ncameras:\n  - terminalId: 7\n    id: 1\n    title: Entrance\n"))
	if err != nil {
		panic(err)
	}
	r := New(gw, store, capStore, table, Config{Location: pacific, ScheduleConcurrency: 4}, logger.Nop())
	r.now = clock.Now
	return r, store
}

const (
	seattle   = 7
	bainbr    = 3
	vesselOne = 15
	vesselTwo = 16
)

var seaBI = cache.RouteKey{DepartureID: seattle, ArrivalID: bainbr}

// seedRoute gives gw one Seattle to Bainbridge route with the given sailings.
func seedRoute(gw *fakeGateway, sailings ...models.Sailing) {
	gw.vessels = []models.VesselInfo{
		{ID: vesselOne, Name: "Tacoma"},
		{ID: vesselTwo, Name: "Wenatchee"},
	}
	gw.pairs = []models.MatePair{{
		DepartingTerminalID: seattle, DepartingName: "Seattle Colman Dock",
		ArrivingTerminalID: bainbr, ArrivingName: "Bainbridge Island",
	}}
	gw.sailings[seaBI] = sailings
	gw.routes[seaBI] = &models.Route{ID: 5, Abbreviation: "sea-bi", Description: "Seattle / Bainbridge Island", CrossingTime: 35}
	gw.terminals = []models.Terminal{
		{ID: seattle, Name: "Seattle Colman Dock"},
		{ID: bainbr, Name: "Bainbridge Island"},
	}
}

func sailing(at time.Time, vesselID, rule int) models.Sailing {
	return models.Sailing{DepartureTime: at, LoadingRule: rule, VesselID: vesselID}
}

func intPtr(v int) *int { return &v }
