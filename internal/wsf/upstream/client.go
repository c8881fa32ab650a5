package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/pkg/wsf/models"
)

const (
	DefaultBaseURL = "https://www.wsdot.wa.gov/ferries/api"
	UserAgent      = "wsftracker/1.0"

	accessCodeParam = "apiaccesscode"
	tripDateLayout  = "2006-01-02"
)

// FetchError is a transient upstream failure: network, status or decode.
// The refreshers retry on their next tick.
type FetchError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client talks to the schedule, vessels and terminals REST families. It holds
// no state apart from the access code.
type Client struct {
	baseURL    string
	accessCode string
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(baseURL, accessCode string, timeout time.Duration, log logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessCode: accessCode,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		logger: log,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	u := c.baseURL + path + "?" + url.Values{accessCodeParam: {c.accessCode}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Path: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Try to read the response body for error details
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Path: path, Err: fmt.Errorf("decoding response: %w", err)}
	}

	c.logger.Debug("Fetched upstream resource",
		"path", path,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// CacheFlushDate returns the family's flush-date token. A null response
// yields the empty token, which callers treat as "changed".
func (c *Client) CacheFlushDate(ctx context.Context, family models.Family) (string, error) {
	var token *string
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/rest/cacheflushdate", family), &token); err != nil {
		return "", err
	}
	if token == nil {
		return "", nil
	}
	return strings.TrimSpace(*token), nil
}

// Vessels returns the static attributes of every vessel in the fleet.
func (c *Client) Vessels(ctx context.Context) ([]models.VesselInfo, error) {
	var raw []vesselVerbose
	if err := c.getJSON(ctx, "/vessels/rest/vesselverbose", &raw); err != nil {
		return nil, err
	}

	infos := make([]models.VesselInfo, 0, len(raw))
	for _, v := range raw {
		infos = append(infos, v.normalize())
	}
	return infos, nil
}

// VesselLocations returns live telemetry for every vessel.
func (c *Client) VesselLocations(ctx context.Context) ([]models.VesselLocation, error) {
	var raw []vesselLocation
	if err := c.getJSON(ctx, "/vessels/rest/vessellocations", &raw); err != nil {
		return nil, err
	}

	locations := make([]models.VesselLocation, 0, len(raw))
	for _, v := range raw {
		locations = append(locations, v.normalize())
	}
	return locations, nil
}

// TerminalsAndMates returns the terminal pairs with service on date.
func (c *Client) TerminalsAndMates(ctx context.Context, date time.Time) ([]models.MatePair, error) {
	var raw []terminalMate
	path := fmt.Sprintf("/schedule/rest/terminalsandmates/%s", date.Format(tripDateLayout))
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	pairs := make([]models.MatePair, 0, len(raw))
	for _, m := range raw {
		pairs = append(pairs, models.MatePair{
			DepartingTerminalID: m.DepartingTerminalID,
			DepartingName:       m.DepartingDescription,
			ArrivingTerminalID:  m.ArrivingTerminalID,
			ArrivingName:        m.ArrivingDescription,
		})
	}
	return pairs, nil
}

// ScheduleToday returns today's sailings from dep to arr, ordered by time.
func (c *Client) ScheduleToday(ctx context.Context, dep, arr int) ([]models.Sailing, error) {
	var raw scheduleToday
	path := fmt.Sprintf("/schedule/rest/scheduletoday/%d/%d/false", dep, arr)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw.normalize(dep, arr), nil
}

// RouteDetails returns the route serving dep→arr on date, or nil if none.
func (c *Client) RouteDetails(ctx context.Context, date time.Time, dep, arr int) (*models.Route, error) {
	var raw []routeDetail
	path := fmt.Sprintf("/schedule/rest/routedetails/%s/%d/%d", date.Format(tripDateLayout), dep, arr)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw[0].normalize(), nil
}

// Terminals returns every terminal's verbose record, normalized.
func (c *Client) Terminals(ctx context.Context) ([]models.Terminal, error) {
	var raw []terminalVerbose
	if err := c.getJSON(ctx, "/terminals/rest/terminalverbose", &raw); err != nil {
		return nil, err
	}

	terminals := make([]models.Terminal, 0, len(raw))
	for _, t := range raw {
		terminals = append(terminals, t.normalize())
	}
	return terminals, nil
}

// SailingSpace returns live vehicle space per departure and destination.
func (c *Client) SailingSpace(ctx context.Context) ([]models.SpaceReading, error) {
	var raw []sailingSpace
	if err := c.getJSON(ctx, "/terminals/rest/terminalsailingspace", &raw); err != nil {
		return nil, err
	}

	var readings []models.SpaceReading
	for _, s := range raw {
		readings = append(readings, s.normalize()...)
	}
	return readings, nil
}
