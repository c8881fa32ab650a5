package models

import "time"

// Loading rule codes published on each scheduled sailing.
const (
	LoadingRulePassengers = 1
	LoadingRuleVehicles   = 2
	LoadingRuleBoth       = 3
)

// AllowsPassengers reports whether a sailing with the given loading rule
// carries walk-on passengers.
func AllowsPassengers(rule int) bool {
	return rule == LoadingRulePassengers || rule == LoadingRuleBoth
}

// AllowsVehicles reports whether a sailing with the given loading rule
// carries vehicles.
func AllowsVehicles(rule int) bool {
	return rule == LoadingRuleVehicles || rule == LoadingRuleBoth
}

// Capacity is a vehicle space reading for one crossing. It is also the
// persisted row shape, keyed by (DepartureID, ArrivalID, DepartureTime).
type Capacity struct {
	DepartureID        int   `json:"departureId"`
	ArrivalID          int   `json:"arrivalId"`
	DepartureTime      int64 `json:"departureTime"` // unix seconds
	DriveUpCapacity    int   `json:"driveUpCapacity"`
	ReservableCapacity int   `json:"reservableCapacity"`
	TotalCapacity      int   `json:"totalCapacity"`
	IsCancelled        bool  `json:"isCancelled"`
	DepartureDelta     *int  `json:"departureDelta"`
}

// IsEmpty reports whether no space on the sailing has been taken.
func (c *Capacity) IsEmpty() bool {
	return c.DriveUpCapacity+c.ReservableCapacity == c.TotalCapacity
}

// IsFull reports whether neither drive-up nor reservable space remains.
func (c *Capacity) IsFull() bool {
	return c.DriveUpCapacity == 0 && c.ReservableCapacity == 0
}

func (c *Capacity) Clone() *Capacity {
	if c == nil {
		return nil
	}
	cp := *c
	if c.DepartureDelta != nil {
		d := *c.DepartureDelta
		cp.DepartureDelta = &d
	}
	return &cp
}

// Estimate is the capacity seen on the same sailing one week earlier.
type Estimate struct {
	DriveUpCapacity    int `json:"driveUpCapacity"`
	ReservableCapacity int `json:"reservableCapacity"`
}

// Crossing is one scheduled sailing on a route.
type Crossing struct {
	DepartureTerminalID int       `json:"departureTerminalId"`
	ArrivalTerminalID   int       `json:"arrivalTerminalId"`
	DepartureTime       int64     `json:"departureTime"` // unix seconds
	ArrivalTime         *int64    `json:"arrivalTime"`
	LoadingRule         int       `json:"loadingRule"`
	AllowsPassengers    bool      `json:"allowsPassengers"`
	AllowsVehicles      bool      `json:"allowsVehicles"`
	HasPassed           bool      `json:"hasPassed"`
	VesselID            int       `json:"vesselId"`
	Vessel              *Vessel   `json:"vessel"`
	Capacity            *Capacity `json:"capacity"`
	Estimate            *Estimate `json:"estimate"`

	// ResetDelay marks the first sailing of a vessel on the route today; the
	// vessel's delay from its previous leg does not apply to it.
	ResetDelay bool `json:"-"`
}

// Delay returns the departure delay applied to this crossing, in seconds.
func (c *Crossing) Delay() int {
	if c.Vessel == nil || c.Vessel.DepartureDelta == nil {
		return 0
	}
	return *c.Vessel.DepartureDelta
}

// Passed is the single definition of hasPassed: the scheduled departure plus
// the known delay lies before now.
func (c *Crossing) Passed(now time.Time) bool {
	return c.DepartureTime+int64(c.Delay()) < now.Unix()
}

func (c *Crossing) Clone() *Crossing {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ArrivalTime != nil {
		at := *c.ArrivalTime
		cp.ArrivalTime = &at
	}
	cp.Vessel = c.Vessel.Clone()
	cp.Capacity = c.Capacity.Clone()
	if c.Estimate != nil {
		e := *c.Estimate
		cp.Estimate = &e
	}
	return &cp
}

// Sailing is one scheduled departure as published upstream.
type Sailing struct {
	DepartureTime time.Time
	ArrivalTime   *time.Time
	LoadingRule   int
	VesselID      int
	VesselName    string
}

// SpaceReading is one live space count for a departure to one destination.
type SpaceReading struct {
	DepartureID        int
	ArrivalID          int
	DepartureTime      time.Time
	VesselID           int
	DriveUpCapacity    int
	ReservableCapacity int
	TotalCapacity      int
	IsCancelled        bool
}

// Schedule is the ordered list of crossings on a route together with the
// time the schedule snapshot was built.
type Schedule struct {
	DepartureTerminalID int         `json:"departureTerminalId"`
	ArrivalTerminalID   int         `json:"arrivalTerminalId"`
	Crossings           []*Crossing `json:"crossings"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}
