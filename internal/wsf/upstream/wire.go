package upstream

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wsf-tracker/pkg/wsf/models"
)

// Response shapes of the WSDOT traveler APIs. Only the fields the tracker
// consumes are declared.

type vesselVerbose struct {
	VesselID     int    `json:"VesselID"`
	VesselName   string `json:"VesselName"`
	VesselAbbrev string `json:"VesselAbbrev"`
	Class        struct {
		ClassID   int    `json:"ClassID"`
		ClassName string `json:"ClassName"`
	} `json:"Class"`
	Status            int    `json:"Status"`
	Length            string `json:"Length"`
	Beam              string `json:"Beam"`
	SpeedInKnots      int    `json:"SpeedInKnots"`
	YearBuilt         int    `json:"YearBuilt"`
	MaxPassengerCount int    `json:"MaxPassengerCount"`
	RegDeckSpace      int    `json:"RegDeckSpace"`
	TallDeckSpace     int    `json:"TallDeckSpace"`
	ADAAccessible     bool   `json:"ADAAccessible"`
	Elevator          bool   `json:"Elevator"`
	CarDeckRestroom   bool   `json:"CarDeckRestroom"`
	MainCabinGalley   bool   `json:"MainCabinGalley"`
	PublicWifi        bool   `json:"PublicWifi"`
}

func (v vesselVerbose) normalize() models.VesselInfo {
	return models.VesselInfo{
		ID:                v.VesselID,
		Name:              strings.TrimSpace(v.VesselName),
		Abbreviation:      v.VesselAbbrev,
		Class:             models.VesselClass{ID: v.Class.ClassID, Name: v.Class.ClassName},
		Status:            v.Status,
		Length:            v.Length,
		Beam:              v.Beam,
		SpeedInKnots:      v.SpeedInKnots,
		YearBuilt:         v.YearBuilt,
		MaxPassengerCount: v.MaxPassengerCount,
		RegularDeckSpace:  v.RegDeckSpace,
		TallDeckSpace:     v.TallDeckSpace,
		Amenities: models.VesselAmenities{
			ADAAccessible:   v.ADAAccessible,
			Elevator:        v.Elevator,
			CarDeckRestroom: v.CarDeckRestroom,
			MainCabinGalley: v.MainCabinGalley,
			PublicWifi:      v.PublicWifi,
		},
	}
}

type vesselLocation struct {
	VesselID            int            `json:"VesselID"`
	VesselName          string         `json:"VesselName"`
	DepartingTerminalID int            `json:"DepartingTerminalID"`
	ArrivingTerminalID  *int           `json:"ArrivingTerminalID"`
	Latitude            float64        `json:"Latitude"`
	Longitude           float64        `json:"Longitude"`
	Speed               float64        `json:"Speed"`
	Heading             int            `json:"Heading"`
	InService           bool           `json:"InService"`
	AtDock              bool           `json:"AtDock"`
	LeftDock            models.WSFTime `json:"LeftDock"`
	Eta                 models.WSFTime `json:"Eta"`
	ScheduledDeparture  models.WSFTime `json:"ScheduledDeparture"`
	OpRouteAbbrev       []string       `json:"OpRouteAbbrev"`
}

func (v vesselLocation) normalize() models.VesselLocation {
	loc := models.VesselLocation{
		VesselID:            v.VesselID,
		VesselName:          strings.TrimSpace(v.VesselName),
		DepartingTerminalID: v.DepartingTerminalID,
		Latitude:            v.Latitude,
		Longitude:           v.Longitude,
		Speed:               v.Speed,
		Heading:             v.Heading,
		InService:           v.InService,
		AtDock:              v.AtDock,
		LeftDock:            v.LeftDock.Ptr(),
		ETA:                 v.Eta.Ptr(),
		ScheduledDeparture:  v.ScheduledDeparture.Ptr(),
	}
	if v.ArrivingTerminalID != nil {
		loc.ArrivingTerminalID = *v.ArrivingTerminalID
	}
	if len(v.OpRouteAbbrev) > 0 {
		loc.RouteAbbreviation = v.OpRouteAbbrev[0]
	}
	return loc
}

type terminalMate struct {
	DepartingTerminalID  int    `json:"DepartingTerminalID"`
	DepartingDescription string `json:"DepartingDescription"`
	ArrivingTerminalID   int    `json:"ArrivingTerminalID"`
	ArrivingDescription  string `json:"ArrivingDescription"`
}

type scheduleToday struct {
	TerminalCombos []struct {
		DepartingTerminalID int `json:"DepartingTerminalID"`
		ArrivingTerminalID  int `json:"ArrivingTerminalID"`
		Times               []struct {
			DepartingTime models.WSFTime `json:"DepartingTime"`
			ArrivingTime  models.WSFTime `json:"ArrivingTime"`
			LoadingRule   int            `json:"LoadingRule"`
			VesselID      int            `json:"VesselID"`
			VesselName    string         `json:"VesselName"`
		} `json:"Times"`
	} `json:"TerminalCombos"`
}

func (s scheduleToday) normalize(dep, arr int) []models.Sailing {
	var sailings []models.Sailing
	for _, combo := range s.TerminalCombos {
		if combo.DepartingTerminalID != dep || combo.ArrivingTerminalID != arr {
			continue
		}
		for _, t := range combo.Times {
			if t.DepartingTime.IsZero() {
				continue
			}
			sailings = append(sailings, models.Sailing{
				DepartureTime: t.DepartingTime.Time,
				ArrivalTime:   t.ArrivingTime.Ptr(),
				LoadingRule:   t.LoadingRule,
				VesselID:      t.VesselID,
				VesselName:    t.VesselName,
			})
		}
	}
	sort.Slice(sailings, func(i, j int) bool {
		return sailings[i].DepartureTime.Before(sailings[j].DepartureTime)
	})
	return sailings
}

type routeDetail struct {
	RouteID      int    `json:"RouteID"`
	RouteAbbrev  string `json:"RouteAbbrev"`
	Description  string `json:"Description"`
	CrossingTime string `json:"CrossingTime"`
}

func (r routeDetail) normalize() *models.Route {
	// CrossingTime is published as a string and is sometimes blank
	minutes, _ := strconv.Atoi(strings.TrimSpace(r.CrossingTime))
	return &models.Route{
		ID:           r.RouteID,
		Abbreviation: r.RouteAbbrev,
		Description:  r.Description,
		CrossingTime: minutes,
	}
}

type terminalVerbose struct {
	TerminalID               int     `json:"TerminalID"`
	TerminalName             string  `json:"TerminalName"`
	TerminalAbbrev           string  `json:"TerminalAbbrev"`
	Latitude                 float64 `json:"Latitude"`
	Longitude                float64 `json:"Longitude"`
	AddressLineOne           string  `json:"AddressLineOne"`
	AddressLineTwo           string  `json:"AddressLineTwo"`
	City                     string  `json:"City"`
	State                    string  `json:"State"`
	ZipCode                  string  `json:"ZipCode"`
	Country                  string  `json:"Country"`
	MapLink                  string  `json:"MapLink"`
	Directions               string  `json:"Directions"`
	Elevator                 bool    `json:"Elevator"`
	WaitingRoom              bool    `json:"WaitingRoom"`
	FoodService              bool    `json:"FoodService"`
	Restroom                 bool    `json:"Restroom"`
	OverheadPassengerLoading bool    `json:"OverheadPassengerLoading"`
	ADAInfo                  string  `json:"AdaInfo"`
	Bulletins                []struct {
		BulletinTitle       string         `json:"BulletinTitle"`
		BulletinText        string         `json:"BulletinText"`
		BulletinLastUpdated models.WSFTime `json:"BulletinLastUpdated"`
	} `json:"Bulletins"`
	WaitTimes []struct {
		RouteID             *int           `json:"RouteID"`
		RouteName           *string        `json:"RouteName"`
		WaitTimeNotes       string         `json:"WaitTimeNotes"`
		WaitTimeLastUpdated models.WSFTime `json:"WaitTimeLastUpdated"`
	} `json:"WaitTimes"`
}

func (t terminalVerbose) normalize() models.Terminal {
	term := models.Terminal{
		ID:           t.TerminalID,
		Name:         strings.TrimSpace(t.TerminalName),
		Abbreviation: t.TerminalAbbrev,
		Amenities: models.TerminalAmenities{
			Elevator:                 t.Elevator,
			WaitingRoom:              t.WaitingRoom,
			FoodService:              t.FoodService,
			Restroom:                 t.Restroom,
			OverheadPassengerLoading: t.OverheadPassengerLoading,
			ADAAccessible:            strings.TrimSpace(t.ADAInfo) != "",
		},
		Location: models.Location{
			Latitude:       t.Latitude,
			Longitude:      t.Longitude,
			AddressLineOne: t.AddressLineOne,
			AddressLineTwo: t.AddressLineTwo,
			City:           t.City,
			State:          t.State,
			ZipCode:        t.ZipCode,
			Country:        t.Country,
			MapLink:        t.MapLink,
			Directions:     t.Directions,
		},
		Bulletins: make([]models.Bulletin, 0, len(t.Bulletins)),
		WaitTimes: make([]models.WaitTime, 0, len(t.WaitTimes)),
	}

	for _, b := range t.Bulletins {
		term.Bulletins = append(term.Bulletins, models.Bulletin{
			Title:       strings.TrimSpace(b.BulletinTitle),
			Body:        b.BulletinText,
			LastUpdated: b.BulletinLastUpdated.Time,
		})
	}
	// Most recent first
	sort.SliceStable(term.Bulletins, func(i, j int) bool {
		return term.Bulletins[i].LastUpdated.After(term.Bulletins[j].LastUpdated)
	})

	for _, w := range t.WaitTimes {
		wt := models.WaitTime{
			Notes:       strings.TrimSpace(w.WaitTimeNotes),
			LastUpdated: w.WaitTimeLastUpdated.Ptr(),
		}
		if w.RouteID != nil {
			wt.RouteID = *w.RouteID
		}
		if w.RouteName != nil {
			wt.RouteName = *w.RouteName
		}
		term.WaitTimes = append(term.WaitTimes, wt)
	}

	return term
}

type sailingSpace struct {
	TerminalID      int `json:"TerminalID"`
	DepartingSpaces []struct {
		Departure                models.WSFTime `json:"Departure"`
		IsCancelled              bool           `json:"IsCancelled"`
		VesselID                 int            `json:"VesselID"`
		MaxSpaceCount            int            `json:"MaxSpaceCount"`
		SpaceForArrivalTerminals []struct {
			TerminalID           int   `json:"TerminalID"`
			DriveUpSpaceCount    int   `json:"DriveUpSpaceCount"`
			ReservableSpaceCount *int  `json:"ReservableSpaceCount"`
			MaxSpaceCount        int   `json:"MaxSpaceCount"`
			ArrivalTerminalIDs   []int `json:"ArrivalTerminalIDs"`
		} `json:"SpaceForArrivalTerminals"`
	} `json:"DepartingSpaces"`
}

func (s sailingSpace) normalize() []models.SpaceReading {
	var readings []models.SpaceReading
	for _, dep := range s.DepartingSpaces {
		if dep.Departure.IsZero() {
			continue
		}
		for _, space := range dep.SpaceForArrivalTerminals {
			total := space.MaxSpaceCount
			if total == 0 {
				total = dep.MaxSpaceCount
			}
			reservable := 0
			if space.ReservableSpaceCount != nil {
				reservable = *space.ReservableSpaceCount
			}

			// A combined reading can cover several destinations
			arrivals := space.ArrivalTerminalIDs
			if len(arrivals) == 0 {
				arrivals = []int{space.TerminalID}
			}
			for _, arr := range arrivals {
				readings = append(readings, models.SpaceReading{
					DepartureID:        s.TerminalID,
					ArrivalID:          arr,
					DepartureTime:      dep.Departure.Time,
					VesselID:           dep.VesselID,
					DriveUpCapacity:    space.DriveUpSpaceCount,
					ReservableCapacity: reservable,
					TotalCapacity:      total,
					IsCancelled:        dep.IsCancelled,
				})
			}
		}
	}
	return readings
}
