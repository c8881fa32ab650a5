package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// wsfDatePattern matches the Microsoft JSON dates used across the WSDOT
// traveler APIs, e.g. "/Date(1539289200000-0700)/".
var wsfDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// WSFTime handles the "/Date(ms±hhmm)/" timestamps returned by the WSF APIs.
// The millisecond value is a UTC epoch; the offset only selects the zone the
// value is presented in.
type WSFTime struct {
	time.Time
}

// ParseWSFTime parses a single "/Date(...)/" value.
func ParseWSFTime(s string) (time.Time, error) {
	m := wsfDatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognised WSF date %q", s)
	}

	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing WSF date %q: %w", s, err)
	}
	t := time.UnixMilli(ms)

	if m[2] == "" {
		return t.UTC(), nil
	}

	hours, _ := strconv.Atoi(m[2][1:3])
	minutes, _ := strconv.Atoi(m[2][3:5])
	offset := hours*3600 + minutes*60
	if m[2][0] == '-' {
		offset = -offset
	}
	return t.In(time.FixedZone("", offset)), nil
}

// UnmarshalJSON accepts "/Date(...)/" strings and null.
func (wt *WSFTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "null" || s == "" {
		return nil
	}

	t, err := ParseWSFTime(s)
	if err != nil {
		return err
	}
	wt.Time = t
	return nil
}

// MarshalJSON converts the time to RFC3339 for downstream clients.
func (wt WSFTime) MarshalJSON() ([]byte, error) {
	if wt.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("\"%s\"", wt.Time.Format(time.RFC3339))), nil
}

// Ptr returns nil for the zero time, otherwise a pointer to the value.
func (wt WSFTime) Ptr() *time.Time {
	if wt.Time.IsZero() {
		return nil
	}
	t := wt.Time
	return &t
}
