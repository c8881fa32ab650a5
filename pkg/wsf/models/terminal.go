package models

import "time"

// Family names one of the three upstream WSF REST families. Each family
// publishes its own cache flush date.
type Family string

const (
	FamilySchedule  Family = "schedule"
	FamilyVessels   Family = "vessels"
	FamilyTerminals Family = "terminals"
)

type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AddressLineOne string  `json:"addressLineOne"`
	AddressLineTwo string  `json:"addressLineTwo,omitempty"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	ZipCode        string  `json:"zipCode"`
	Country        string  `json:"country"`
	MapLink        string  `json:"mapLink,omitempty"`
	Directions     string  `json:"directions,omitempty"`
}

type TerminalAmenities struct {
	Elevator                 bool `json:"elevator"`
	WaitingRoom              bool `json:"waitingRoom"`
	FoodService              bool `json:"foodService"`
	Restroom                 bool `json:"restroom"`
	OverheadPassengerLoading bool `json:"overheadPassengerLoading"`
	ADAAccessible            bool `json:"adaAccessible"`
}

type Bulletin struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type WaitTime struct {
	RouteID     int        `json:"routeId,omitempty"`
	RouteName   string     `json:"routeName,omitempty"`
	Notes       string     `json:"notes"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

type Camera struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ImageURL    string  `json:"imageUrl"`
	Orientation string  `json:"orientation,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// Route describes the crossing between a terminal and one of its mates.
type Route struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	Description  string `json:"description"`
	CrossingTime int    `json:"crossingTime"` // minutes
}

// Mate is a terminal reachable from another terminal today.
type Mate struct {
	TerminalID int    `json:"terminalId"`
	Name       string `json:"name"`
	Route      *Route `json:"route,omitempty"`
}

// MatePair is one active (departing, arriving) terminal combination.
type MatePair struct {
	DepartingTerminalID int    `json:"departingTerminalId"`
	DepartingName       string `json:"departingName"`
	ArrivingTerminalID  int    `json:"arrivingTerminalId"`
	ArrivingName        string `json:"arrivingName"`
}

type Terminal struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	Abbreviation string            `json:"abbreviation"`
	Amenities    TerminalAmenities `json:"amenities"`
	Location     Location          `json:"location"`
	Bulletins    []Bulletin        `json:"bulletins"`
	WaitTimes    []WaitTime        `json:"waitTimes"`
	Cameras      []Camera          `json:"cameras"`
	Mates        []Mate            `json:"mates"`
}

// Clone returns a deep copy of the terminal.
func (t *Terminal) Clone() *Terminal {
	if t == nil {
		return nil
	}
	c := *t
	c.Bulletins = append([]Bulletin(nil), t.Bulletins...)
	c.Cameras = append([]Camera(nil), t.Cameras...)
	c.WaitTimes = make([]WaitTime, len(t.WaitTimes))
	for i, w := range t.WaitTimes {
		if w.LastUpdated != nil {
			lu := *w.LastUpdated
			w.LastUpdated = &lu
		}
		c.WaitTimes[i] = w
	}
	c.Mates = make([]Mate, len(t.Mates))
	for i, m := range t.Mates {
		if m.Route != nil {
			r := *m.Route
			m.Route = &r
		}
		c.Mates[i] = m
	}
	return &c
}
