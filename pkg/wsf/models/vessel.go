package models

import "time"

type VesselClass struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type VesselAmenities struct {
	ADAAccessible   bool `json:"adaAccessible"`
	Elevator        bool `json:"elevator"`
	CarDeckRestroom bool `json:"carDeckRestroom"`
	MainCabinGalley bool `json:"mainCabinGalley"`
	PublicWifi      bool `json:"publicWifi"`
}

// VesselInfo holds the attributes that only change on a long-cycle refresh.
type VesselInfo struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	Abbreviation      string          `json:"abbreviation"`
	Class             VesselClass     `json:"class"`
	Status            int             `json:"status"`
	Length            string          `json:"length"`
	Beam              string          `json:"beam"`
	SpeedInKnots      int             `json:"speedInKnots"`
	YearBuilt         int             `json:"yearBuilt"`
	MaxPassengerCount int             `json:"maxPassengerCount"`
	RegularDeckSpace  int             `json:"regularDeckSpace"`
	TallDeckSpace     int             `json:"tallDeckSpace"`
	Amenities         VesselAmenities `json:"amenities"`
}

// VesselLocation is one live telemetry reading for a vessel.
type VesselLocation struct {
	VesselID            int
	VesselName          string
	DepartingTerminalID int
	ArrivingTerminalID  int
	Latitude            float64
	Longitude           float64
	Speed               float64
	Heading             int
	InService           bool
	AtDock              bool
	LeftDock            *time.Time
	ETA                 *time.Time
	ScheduledDeparture  *time.Time
	RouteAbbreviation   string
}

// Vessel merges static and live attributes. DepartureDelta is in seconds
// and stays nil until a departure has been observed.
type Vessel struct {
	VesselInfo

	Latitude            float64    `json:"latitude"`
	Longitude           float64    `json:"longitude"`
	Speed               float64    `json:"speed"`
	Heading             int        `json:"heading"`
	InService           bool       `json:"inService"`
	AtDock              bool       `json:"atDock"`
	DockedTime          *time.Time `json:"dockedTime"`
	DepartureDelta      *int       `json:"departureDelta"`
	LeftDock            *time.Time `json:"leftDock"`
	ETA                 *time.Time `json:"eta"`
	ScheduledDeparture  *time.Time `json:"scheduledDeparture"`
	DepartingTerminalID int        `json:"departingTerminalId,omitempty"`
	ArrivingTerminalID  int        `json:"arrivingTerminalId,omitempty"`
	RouteAbbreviation   string     `json:"routeAbbreviation,omitempty"`
}

// Clone returns a deep copy so callers can't mutate cached state.
func (v *Vessel) Clone() *Vessel {
	if v == nil {
		return nil
	}
	c := *v
	c.DockedTime = cloneTime(v.DockedTime)
	c.LeftDock = cloneTime(v.LeftDock)
	c.ETA = cloneTime(v.ETA)
	c.ScheduledDeparture = cloneTime(v.ScheduledDeparture)
	if v.DepartureDelta != nil {
		d := *v.DepartureDelta
		c.DepartureDelta = &d
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
