// Package cache holds the in-memory WSF state shared by the refreshers and
// the query surface.
//
// Each upstream family has an in-flight handle. A refresher publishes the
// handle with Begin before it starts work and clears it with the returned
// done func; readers Await the handle so they observe the result of a
// refresh that was already running when they asked.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wsf-tracker/pkg/wsf/models"
)

var ErrNotFound = errors.New("not found")

// RouteKey identifies a directed terminal pair.
type RouteKey struct {
	DepartureID int
	ArrivalID   int
}

// Span is an inclusive range of unix departure times.
type Span struct {
	From int64
	To   int64
}

// Covers reports whether o lies inside s.
func (s Span) Covers(o Span) bool {
	return s.From <= o.From && o.To <= s.To
}

// State is the mutable data owned by the store. It is only touched inside
// Read and Write callbacks.
type State struct {
	Mates     map[int][]models.MatePair // by departing terminal
	Vessels   map[int]*models.Vessel
	Terminals map[int]*models.Terminal
	Schedule  map[RouteKey]map[int64]*models.Crossing
	// LastWeek holds capacity rows from one week before today's sailings,
	// by route and departure time.
	LastWeek map[RouteKey]map[int64]*models.Capacity
	// LastWeekSpan is the departure range each LastWeek entry was loaded for.
	LastWeekSpan map[RouteKey]Span

	ScheduleDate      string // yyyy-mm-dd in the schedule time zone
	ScheduleUpdatedAt time.Time
}

type Store struct {
	mu    sync.RWMutex
	state State

	flightMu sync.Mutex
	inFlight map[models.Family]chan struct{}
	tokens   map[models.Family]string
}

func New() *Store {
	return &Store{
		state: State{
			Mates:        make(map[int][]models.MatePair),
			Vessels:      make(map[int]*models.Vessel),
			Terminals:    make(map[int]*models.Terminal),
			Schedule:     make(map[RouteKey]map[int64]*models.Crossing),
			LastWeek:     make(map[RouteKey]map[int64]*models.Capacity),
			LastWeekSpan: make(map[RouteKey]Span),
		},
		inFlight: make(map[models.Family]chan struct{}),
		tokens:   make(map[models.Family]string),
	}
}

// Begin publishes an in-flight refresh for family. ok is false if one is
// already running; otherwise done must be called exactly once when the
// refresh finishes, successfully or not.
func (s *Store) Begin(family models.Family) (done func(), ok bool) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	if _, running := s.inFlight[family]; running {
		return nil, false
	}

	ch := make(chan struct{})
	s.inFlight[family] = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			s.flightMu.Lock()
			delete(s.inFlight, family)
			s.flightMu.Unlock()
			close(ch)
		})
	}, true
}

// Refreshing reports whether a refresh of family is in flight.
func (s *Store) Refreshing(family models.Family) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	_, running := s.inFlight[family]
	return running
}

// Await blocks until the refresh of family that is in flight right now, if
// any, has completed.
func (s *Store) Await(ctx context.Context, family models.Family) error {
	s.flightMu.Lock()
	ch := s.inFlight[family]
	s.flightMu.Unlock()

	if ch == nil {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushToken returns the last flush-date token recorded for family.
func (s *Store) FlushToken(family models.Family) string {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	return s.tokens[family]
}

func (s *Store) SetFlushToken(family models.Family, token string) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	s.tokens[family] = token
}

// Read runs fn with shared access to the state. fn must not retain
// references past its return.
func (s *Store) Read(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// Write runs fn with exclusive access to the state.
func (s *Store) Write(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Vessels returns a copy of every vessel, ordered by id.
func (s *Store) Vessels(ctx context.Context) ([]*models.Vessel, error) {
	if err := s.Await(ctx, models.FamilyVessels); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	vessels := make([]*models.Vessel, 0, len(s.state.Vessels))
	for _, v := range s.state.Vessels {
		vessels = append(vessels, v.Clone())
	}
	sort.Slice(vessels, func(i, j int) bool { return vessels[i].ID < vessels[j].ID })
	return vessels, nil
}

// Vessel returns a copy of one vessel. With resetDelay the copy has no
// departure delta, for rendering a later departure the delay doesn't carry to.
func (s *Store) Vessel(ctx context.Context, id int, resetDelay bool) (*models.Vessel, error) {
	if err := s.Await(ctx, models.FamilyVessels); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.state.Vessels[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := v.Clone()
	if resetDelay {
		c.DepartureDelta = nil
	}
	return c, nil
}

// Terminals returns a copy of every terminal, ordered by id.
func (s *Store) Terminals(ctx context.Context) ([]*models.Terminal, error) {
	if err := s.Await(ctx, models.FamilyTerminals); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	terminals := make([]*models.Terminal, 0, len(s.state.Terminals))
	for _, t := range s.state.Terminals {
		terminals = append(terminals, t.Clone())
	}
	sort.Slice(terminals, func(i, j int) bool { return terminals[i].ID < terminals[j].ID })
	return terminals, nil
}

func (s *Store) Terminal(ctx context.Context, id int) (*models.Terminal, error) {
	if err := s.Await(ctx, models.FamilyTerminals); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.state.Terminals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// Schedule returns the crossings from dep to arr ordered by departure time.
// A pair with no service today yields ErrNotFound.
func (s *Store) Schedule(ctx context.Context, dep, arr int) (*models.Schedule, error) {
	if err := s.Await(ctx, models.FamilySchedule); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	route, ok := s.state.Schedule[RouteKey{DepartureID: dep, ArrivalID: arr}]
	if !ok {
		return nil, ErrNotFound
	}

	sched := &models.Schedule{
		DepartureTerminalID: dep,
		ArrivalTerminalID:   arr,
		Crossings:           make([]*models.Crossing, 0, len(route)),
		UpdatedAt:           s.state.ScheduleUpdatedAt,
	}
	for _, c := range route {
		sched.Crossings = append(sched.Crossings, c.Clone())
	}
	sort.Slice(sched.Crossings, func(i, j int) bool {
		return sched.Crossings[i].DepartureTime < sched.Crossings[j].DepartureTime
	})
	return sched, nil
}

// Mates returns today's destinations from a terminal.
func (s *Store) Mates(ctx context.Context, terminalID int) ([]models.MatePair, error) {
	if err := s.Await(ctx, models.FamilySchedule); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.MatePair{}, s.state.Mates[terminalID]...), nil
}

// SortedTimes returns the departure times of a route in ascending order.
func SortedTimes(route map[int64]*models.Crossing) []int64 {
	times := make([]int64, 0, len(route))
	for t := range route {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}

// Previous returns the crossing departing immediately before departure on
// the same route, or nil.
func Previous(route map[int64]*models.Crossing, departure int64) *models.Crossing {
	var prev *models.Crossing
	for t, c := range route {
		if t < departure && (prev == nil || t > prev.DepartureTime) {
			prev = c
		}
	}
	return prev
}
