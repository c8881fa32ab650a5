package overrides

import (
	"testing"

	"github.com/wsf-tracker/pkg/wsf/models"
)

func TestDefaultTableParses(t *testing.T) {
	table, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if len(table.Cameras(7)) == 0 {
		t.Error("Seattle should have cameras in the default table")
	}
}

func TestApply(t *testing.T) {
	table, err := Parse([]byte(`
terminals:
  - id: 7
    name: Seattle
    mapLink: https://example.com/seattle
    latitude: 47.6
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	term := models.Terminal{
		ID:   7,
		Name: "Seattle Colman Dock",
		Location: models.Location{
			City:      "Seattle",
			Latitude:  1,
			Longitude: -122.3,
		},
	}
	table.Apply(&term)

	if term.Name != "Seattle" {
		t.Errorf("Name = %q, want override", term.Name)
	}
	if term.Location.MapLink != "https://example.com/seattle" || term.Location.Latitude != 47.6 {
		t.Errorf("Location = %+v", term.Location)
	}
	if term.Location.City != "Seattle" || term.Location.Longitude != -122.3 {
		t.Error("fields without an override must keep upstream values")
	}

	other := models.Terminal{ID: 3, Name: "Bainbridge Island"}
	table.Apply(&other)
	if other.Name != "Bainbridge Island" {
		t.Error("terminal without override was modified")
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	tests := map[string]string{
		"missing id": "terminals:\n  - name: X\n",
		"duplicate":  "terminals:\n  - id: 1\n  - id: 1\n",
		"bad yaml":   "terminals: [",
	}
	for name, data := range tests {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: Parse() expected error", name)
		}
	}
}

func TestCamerasAreCopies(t *testing.T) {
	table, err := Parse([]byte(`
cameras:
  - terminalId: 8
    id: 1
    title: Edmonds
    imageUrl: https://example.com/edmonds.jpg
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cams := table.Cameras(8)
	cams[0].Title = "changed"
	if table.Cameras(8)[0].Title != "Edmonds" {
		t.Error("Cameras() must return a copy")
	}
	if got := table.Cameras(99); got == nil || len(got) != 0 {
		t.Errorf("Cameras(unknown) = %v, want empty slice", got)
	}
}
