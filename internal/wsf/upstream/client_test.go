package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/pkg/wsf/models"
)

func newTestClient(t *testing.T, routes map[string]string) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiaccesscode") != "secret" {
			t.Errorf("apiaccesscode = %q, want secret", r.URL.Query().Get("apiaccesscode"))
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return NewClient(server.URL, "secret", 5*time.Second, logger.Nop())
}

func TestCacheFlushDate(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/schedule/rest/cacheflushdate":  `"/Date(1700000000000-0800)/"`,
		"/terminals/rest/cacheflushdate": `null`,
	})
	ctx := context.Background()

	token, err := client.CacheFlushDate(ctx, models.FamilySchedule)
	if err != nil {
		t.Fatalf("CacheFlushDate() error = %v", err)
	}
	if token != "/Date(1700000000000-0800)/" {
		t.Errorf("token = %q", token)
	}

	token, err = client.CacheFlushDate(ctx, models.FamilyTerminals)
	if err != nil {
		t.Fatalf("CacheFlushDate(null) error = %v", err)
	}
	if token != "" {
		t.Errorf("null flush date token = %q, want empty", token)
	}
}

func TestFetchErrors(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/vessels/rest/vesselverbose": `{not json`,
	})
	ctx := context.Background()

	_, err := client.Vessels(ctx)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Vessels() error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Errorf("decode failure StatusCode = %d, want 0", fetchErr.StatusCode)
	}

	_, err = client.VesselLocations(ctx)
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("VesselLocations() error = %v, want 404 FetchError", err)
	}
}

func TestVesselLocations(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/vessels/rest/vessellocations": `[
			{"VesselID":2,"VesselName":"Chelan ","DepartingTerminalID":1,"ArrivingTerminalID":10,
			 "Latitude":48.5,"Longitude":-122.6,"Speed":15.2,"Heading":270,"InService":true,"AtDock":false,
			 "LeftDock":"/Date(1700000300000-0800)/","Eta":"/Date(1700003000000-0800)/",
			 "ScheduledDeparture":"/Date(1700000000000-0800)/","OpRouteAbbrev":["ana-sj"]},
			{"VesselID":3,"VesselName":"Issaquah","DepartingTerminalID":7,"ArrivingTerminalID":null,
			 "AtDock":true,"LeftDock":null,"Eta":null,"ScheduledDeparture":null,"OpRouteAbbrev":[]}
		]`,
	})

	locs, err := client.VesselLocations(context.Background())
	if err != nil {
		t.Fatalf("VesselLocations() error = %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("len(locs) = %d, want 2", len(locs))
	}

	moving := locs[0]
	if moving.VesselName != "Chelan" || moving.RouteAbbreviation != "ana-sj" || moving.ArrivingTerminalID != 10 {
		t.Errorf("moving = %+v", moving)
	}
	if moving.LeftDock == nil || moving.ScheduledDeparture == nil {
		t.Fatal("LeftDock and ScheduledDeparture should be set")
	}
	if d := moving.LeftDock.Sub(*moving.ScheduledDeparture); d != 5*time.Minute {
		t.Errorf("LeftDock - ScheduledDeparture = %v, want 5m", d)
	}

	docked := locs[1]
	if !docked.AtDock || docked.LeftDock != nil || docked.ArrivingTerminalID != 0 {
		t.Errorf("docked = %+v", docked)
	}
}

func TestScheduleToday(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/schedule/rest/scheduletoday/7/3/false": `{"TerminalCombos":[
			{"DepartingTerminalID":7,"ArrivingTerminalID":3,"Times":[
				{"DepartingTime":"/Date(1700007200000-0800)/","ArrivingTime":null,"LoadingRule":3,"VesselID":15,"VesselName":"Tacoma"},
				{"DepartingTime":"/Date(1700003600000-0800)/","ArrivingTime":"/Date(1700005700000-0800)/","LoadingRule":1,"VesselID":16,"VesselName":"Wenatchee"}
			]},
			{"DepartingTerminalID":3,"ArrivingTerminalID":7,"Times":[
				{"DepartingTime":"/Date(1700009000000-0800)/","LoadingRule":3,"VesselID":15}
			]}
		]}`,
	})

	sailings, err := client.ScheduleToday(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("ScheduleToday() error = %v", err)
	}
	if len(sailings) != 2 {
		t.Fatalf("len(sailings) = %d, want 2 (other direction filtered)", len(sailings))
	}
	if sailings[0].DepartureTime.Unix() != 1700003600 || sailings[1].DepartureTime.Unix() != 1700007200 {
		t.Errorf("sailings not ordered by departure: %+v", sailings)
	}
	if sailings[0].ArrivalTime == nil || sailings[1].ArrivalTime != nil {
		t.Error("ArrivalTime should be decoded when present and nil when null")
	}
}

func TestTerminalsNormalize(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/terminals/rest/terminalverbose": `[{
			"TerminalID":7,"TerminalName":"Seattle","TerminalAbbrev":"P52",
			"Latitude":47.6,"Longitude":-122.3,"City":"Seattle","State":"WA",
			"Elevator":true,"Restroom":true,"AdaInfo":"Accessible",
			"Bulletins":[
				{"BulletinTitle":"Old","BulletinText":"a","BulletinLastUpdated":"/Date(1600000000000-0700)/"},
				{"BulletinTitle":"New","BulletinText":"b","BulletinLastUpdated":"/Date(1700000000000-0800)/"}
			],
			"WaitTimes":[{"RouteID":null,"RouteName":null,"WaitTimeNotes":" Expect delays ","WaitTimeLastUpdated":null}]
		}]`,
	})

	terms, err := client.Terminals(context.Background())
	if err != nil {
		t.Fatalf("Terminals() error = %v", err)
	}
	if len(terms) != 1 {
		t.Fatalf("len(terms) = %d", len(terms))
	}

	term := terms[0]
	if !term.Amenities.Elevator || !term.Amenities.ADAAccessible || term.Amenities.FoodService {
		t.Errorf("Amenities = %+v", term.Amenities)
	}
	if len(term.Bulletins) != 2 || term.Bulletins[0].Title != "New" {
		t.Errorf("Bulletins not ordered by recency: %+v", term.Bulletins)
	}
	if len(term.WaitTimes) != 1 || term.WaitTimes[0].Notes != "Expect delays" || term.WaitTimes[0].LastUpdated != nil {
		t.Errorf("WaitTimes = %+v", term.WaitTimes)
	}
}

func TestSailingSpace(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/terminals/rest/terminalsailingspace": `[{
			"TerminalID":7,
			"DepartingSpaces":[{
				"Departure":"/Date(1700003600000-0800)/","IsCancelled":false,"VesselID":15,"MaxSpaceCount":202,
				"SpaceForArrivalTerminals":[
					{"TerminalID":3,"DriveUpSpaceCount":120,"ReservableSpaceCount":null,"MaxSpaceCount":202,"ArrivalTerminalIDs":[3]}
				]
			},{
				"Departure":"/Date(1700007200000-0800)/","IsCancelled":true,"VesselID":16,"MaxSpaceCount":90,
				"SpaceForArrivalTerminals":[
					{"TerminalID":0,"DriveUpSpaceCount":10,"ReservableSpaceCount":5,"MaxSpaceCount":0,"ArrivalTerminalIDs":[13,18]}
				]
			}]
		}]`,
	})

	readings, err := client.SailingSpace(context.Background())
	if err != nil {
		t.Fatalf("SailingSpace() error = %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("len(readings) = %d, want 3", len(readings))
	}

	first := readings[0]
	if first.DepartureID != 7 || first.ArrivalID != 3 || first.DriveUpCapacity != 120 || first.ReservableCapacity != 0 || first.TotalCapacity != 202 {
		t.Errorf("first = %+v", first)
	}

	multi := readings[1:]
	if multi[0].ArrivalID != 13 || multi[1].ArrivalID != 18 {
		t.Errorf("multi-destination arrivals = %d,%d", multi[0].ArrivalID, multi[1].ArrivalID)
	}
	if multi[0].TotalCapacity != 90 || !multi[0].IsCancelled {
		t.Errorf("multi[0] = %+v, want departure max space and cancellation", multi[0])
	}
}

func TestRouteDetails(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/schedule/rest/routedetails/2024-05-01/7/3": `[{"RouteID":5,"RouteAbbrev":"sea-bi","Description":"Seattle / Bainbridge Island","CrossingTime":"35"}]`,
		"/schedule/rest/routedetails/2024-05-01/7/4": `[]`,
	})
	date := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	route, err := client.RouteDetails(context.Background(), date, 7, 3)
	if err != nil {
		t.Fatalf("RouteDetails() error = %v", err)
	}
	if route == nil || route.ID != 5 || route.CrossingTime != 35 || route.Abbreviation != "sea-bi" {
		t.Errorf("route = %+v", route)
	}

	route, err = client.RouteDetails(context.Background(), date, 7, 4)
	if err != nil || route != nil {
		t.Errorf("RouteDetails(empty) = %+v, %v; want nil, nil", route, err)
	}
}

func TestTerminalsAndMates(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"/schedule/rest/terminalsandmates/2024-05-01": `[
			{"DepartingTerminalID":7,"DepartingDescription":"Seattle","ArrivingTerminalID":3,"ArrivingDescription":"Bainbridge Island"}
		]`,
	})

	pairs, err := client.TerminalsAndMates(context.Background(), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("TerminalsAndMates() error = %v", err)
	}
	want := models.MatePair{DepartingTerminalID: 7, DepartingName: "Seattle", ArrivingTerminalID: 3, ArrivingName: "Bainbridge Island"}
	if len(pairs) != 1 || pairs[0] != want {
		t.Errorf("pairs = %+v", pairs)
	}
}
